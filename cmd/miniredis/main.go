// miniredis is an interactive in-memory key-value cache with LRU eviction and
// lazily expiring TTLs, driven by Redis-style commands on stdin.
//
// Usage:
//
//	miniredis [options]
//
// Commands (one per line):
//
//	SET k v                  OK
//	GET k                    "v" | (nil)
//	DEL k                    (integer) N
//	EXISTS k                 (integer) N
//	DBSIZE                   (integer) N
//	EXPIRE k seconds         (integer) N
//	TTL k                    (integer) N
//	CONFIG SET maxmemory N   OK
//	INFO memory              used_memory:N / maxmemory:N / evicted_keys:N
//	EXIT | QUIT
//
// Exit codes:
//
//	0: normal exit (EXIT, QUIT, end of input, signal)
//	1: runtime failure
//	2: invalid flags or configuration
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// Version can be set with -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Signal-aware context is the root of ownership for everything below.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := createApp(stdin, stdout, stderr)
	return exitCode(app.Run(ctx, args), stderr)
}

// exitCode reports err on stderr where urfave/cli has not already done so
// and maps it to the process exit code.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "miniredis: %v\n", usageErr)
		return 2
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		return 2
	}
	fmt.Fprintf(stderr, "miniredis: %v\n", err)
	return 1
}

// usageError marks failures caused by flags or configuration contents.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func createApp(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "miniredis",
		Usage:     "in-memory LRU cache with TTLs and a Redis-style prompt",
		Version:   Version,
		Reader:    stdin,
		Writer:    stderr,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON configuration file",
			},
			&cli.IntFlag{
				Name:  "maxmemory",
				Usage: "maximum number of keys (0 = unbounded)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "write logs to a rotating file instead of stderr",
			},
			&cli.StringFlag{
				Name:  "prompt",
				Usage: "prompt printed before each command",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "reload --config on change and apply cache.maxmemory",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "collect command metrics and log a summary on exit",
			},
		},
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return &usageError{err: err}
		},
		// run() maps errors to exit codes; urfave/cli must not call os.Exit.
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			var exitErr cli.ExitCoder
			if errors.As(err, &exitErr) {
				fmt.Fprintln(stderr, err)
			}
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := optionsFromFlags(cmd)
			if err != nil {
				return &usageError{err: err}
			}
			return serve(ctx, opts, stdin, stdout, stderr)
		},
	}
}
