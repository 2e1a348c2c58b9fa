// Package repl runs the interactive prompt loop on top of a command
// interpreter.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"miniredis/internal/command"
	"miniredis/internal/logging"
)

// maxLineSize caps a single input line.
const maxLineSize = 1 << 20

// Executor runs one input line. *command.Interpreter satisfies it.
type Executor interface {
	ExecuteLine(ctx context.Context, line string) command.Reply
}

// Session is one prompt loop. It is not reusable across goroutines.
type Session struct {
	exec   Executor
	prompt string
	log    *slog.Logger
	id     string
}

// Option configures a Session.
type Option func(*Session)

func WithPrompt(p string) Option {
	return func(s *Session) { s.prompt = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSession creates a session with the default "mini-redis> " prompt.
func NewSession(exec Executor, opts ...Option) *Session {
	s := &Session{
		exec:   exec,
		prompt: "mini-redis> ",
		log:    logging.Discard(),
		id:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("session", s.id))
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Run prints the prompt, reads a line, executes it and prints the reply
// lines, until EXIT/QUIT, end of input or ctx cancellation. Blank lines get
// a new prompt and nothing else. Only read and write failures are returned.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines, readErr := startInputReader(ctx, in)
	s.log.DebugContext(ctx, "session started")

	executed := 0
	defer func() {
		s.log.DebugContext(ctx, "session ended", slog.Int("commands", executed))
	}()

	for {
		if _, err := io.WriteString(out, s.prompt); err != nil {
			return fmt.Errorf("repl: write prompt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return fmt.Errorf("repl: read input: %w", err)
		case line, ok := <-lines:
			if !ok {
				// The reader reports its error before closing lines.
				select {
				case err := <-readErr:
					return fmt.Errorf("repl: read input: %w", err)
				default:
					return nil
				}
			}
			reply := s.exec.ExecuteLine(ctx, line)
			if reply.Quit {
				return nil
			}
			if len(reply.Lines) > 0 {
				executed++
			}
			for _, l := range reply.Lines {
				if _, err := fmt.Fprintln(out, l); err != nil {
					return fmt.Errorf("repl: write reply: %w", err)
				}
			}
		}
	}
}

// startInputReader scans in on its own goroutine so Run can stop on ctx.
// The lines channel is unbuffered and every send is guarded by ctx. After
// cancellation the goroutine exits once the pending read returns, so a
// reader that never returns keeps it blocked until the caller closes it.
func startInputReader(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			errc <- err
		}
	}()

	return lines, errc
}
