// Package logging builds the process logger.
//
// Output goes to stderr or to a size-rotated file; never to stdout, which
// carries the command protocol.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrUnknownLevel  = errors.New("logging: unknown level")
	ErrUnknownFormat = errors.New("logging: unknown format")
)

// Rotation limits for file output. Zero values fall back to lumberjack's
// own defaults.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ParseLevel accepts debug/info/warn/warning/error, case-insensitive.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w %q", ErrUnknownLevel, s)
	}
}

// Builder collects logger settings. The first invalid setting is kept and
// reported by Build.
type Builder struct {
	output   io.Writer
	level    *slog.LevelVar
	format   string
	file     string
	rotation Rotation
	err      error
}

// New returns a Builder writing text at info level to stderr.
func New() *Builder {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	return &Builder{
		output: os.Stderr,
		level:  level,
		format: "text",
	}
}

// SetOutput sets the writer used when no file is configured.
func (b *Builder) SetOutput(w io.Writer) *Builder {
	b.output = w
	return b
}

func (b *Builder) SetLevel(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.keep(err)
		return b
	}
	b.level.Set(level)
	return b
}

// SetFormat takes text or json; empty means text.
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.keep(fmt.Errorf("%w %q", ErrUnknownFormat, format))
	}
	return b
}

// SetFile routes output to a rotating file. An empty name keeps the writer.
func (b *Builder) SetFile(name string, rot Rotation) *Builder {
	b.file = strings.TrimSpace(name)
	b.rotation = rot
	return b
}

// Build returns the logger, its level control and a cleanup func that
// closes the log file, if any.
func (b *Builder) Build() (*slog.Logger, *slog.LevelVar, func() error, error) {
	if b.err != nil {
		return nil, nil, nil, b.err
	}

	out := b.output
	cleanup := func() error { return nil }
	if b.file != "" {
		lj := &lumberjack.Logger{
			Filename:   b.file,
			MaxSize:    b.rotation.MaxSizeMB,
			MaxBackups: b.rotation.MaxBackups,
			MaxAge:     b.rotation.MaxAgeDays,
			Compress:   b.rotation.Compress,
		}
		out = lj
		cleanup = lj.Close
	}

	opts := &slog.HandlerOptions{Level: b.level}
	var h slog.Handler
	if b.format == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h), b.level, cleanup, nil
}

func (b *Builder) keep(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
