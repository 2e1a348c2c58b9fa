// Package config loads miniredis settings from YAML or JSON and watches the
// file for changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DefaultPrompt is printed before each command unless repl.prompt is set.
const DefaultPrompt = "mini-redis> "

var (
	ErrEmptyPath         = errors.New("config: empty config path")
	ErrUnsupportedFormat = errors.New("config: unsupported config format")
	ErrLoadFailed        = errors.New("config: failed to load config")
	ErrParseFailed       = errors.New("config: failed to parse config")
	ErrInvalid           = errors.New("config: invalid value")
)

type Config struct {
	Cache   Cache   `koanf:"cache"`
	REPL    REPL    `koanf:"repl"`
	Log     Log     `koanf:"log"`
	Metrics Metrics `koanf:"metrics"`
}

type Cache struct {
	// MaxMemory bounds the number of keys; 0 is unbounded.
	MaxMemory int `koanf:"maxmemory"`
}

type REPL struct {
	Prompt string `koanf:"prompt"`
}

type Log struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

type Metrics struct {
	Enabled bool `koanf:"enabled"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		REPL: REPL{Prompt: DefaultPrompt},
		Log: Log{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load reads path, picking the parser from its extension
// (.yaml, .yml or .json). Keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, ErrEmptyPath
	}
	format, err := DetectFormat(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return Parse(data, format)
}

// Parse decodes data on top of Default. Empty data yields the defaults.
func Parse(data []byte, format Format) (Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the engine and the logger would otherwise reject
// later.
func (c Config) Validate() error {
	if c.Cache.MaxMemory < 0 {
		return fmt.Errorf("%w: cache.maxmemory must not be negative, got %d", ErrInvalid, c.Cache.MaxMemory)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}
