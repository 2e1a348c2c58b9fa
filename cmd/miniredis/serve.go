package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"miniredis/internal/cache"
	"miniredis/internal/command"
	"miniredis/internal/config"
	"miniredis/internal/logging"
	"miniredis/internal/repl"
	"miniredis/internal/telemetry"
)

type options struct {
	cfg        config.Config
	configPath string
	watch      bool
}

// optionsFromFlags loads the configuration file, if any, and lets explicitly
// set flags override it.
func optionsFromFlags(cmd *cli.Command) (options, error) {
	opts := options{
		cfg:        config.Default(),
		configPath: cmd.String("config"),
		watch:      cmd.Bool("watch"),
	}
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return options{}, err
		}
		opts.cfg = cfg
	}
	if opts.watch && opts.configPath == "" {
		return options{}, fmt.Errorf("--watch requires --config")
	}

	if cmd.IsSet("maxmemory") {
		opts.cfg.Cache.MaxMemory = cmd.Int("maxmemory")
	}
	if cmd.IsSet("log-level") {
		opts.cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		opts.cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("log-file") {
		opts.cfg.Log.File = cmd.String("log-file")
	}
	if cmd.IsSet("prompt") {
		opts.cfg.REPL.Prompt = cmd.String("prompt")
	}
	if cmd.IsSet("metrics") {
		opts.cfg.Metrics.Enabled = cmd.Bool("metrics")
	}

	if err := opts.cfg.Validate(); err != nil {
		return options{}, err
	}
	if _, err := logging.ParseLevel(opts.cfg.Log.Level); err != nil {
		return options{}, err
	}
	return opts, nil
}

// serve wires the engine, interpreter and prompt loop, plus the config
// watcher when requested, and blocks until the session ends.
func serve(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := opts.cfg

	logger, _, closeLog, err := logging.New().
		SetOutput(stderr).
		SetLevel(cfg.Log.Level).
		SetFormat(cfg.Log.Format).
		SetFile(cfg.Log.File, logging.Rotation{
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}).
		Build()
	if err != nil {
		return &usageError{err: err}
	}
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(stderr, "miniredis: close log: %v\n", err)
		}
	}()

	var collector *telemetry.Collector
	recOpts := []telemetry.Option{}
	if cfg.Metrics.Enabled {
		collector = telemetry.NewCollector()
		recOpts = append(recOpts, telemetry.WithMeterProvider(collector.Provider()))
	}
	rec, err := telemetry.New(recOpts...)
	if err != nil {
		return err
	}

	engine := cache.NewLocked(cache.New(cache.Config{
		MaxEntries: cfg.Cache.MaxMemory,
		OnEvict: func(key string) {
			rec.Evicted(key)
			logger.Debug("key evicted", slog.String("key", key))
		},
		OnExpire: func(key string) {
			rec.Expired(key)
			logger.Debug("key expired", slog.String("key", key))
		},
	}))

	interp := command.New(engine, command.WithLogger(logger), command.WithRecorder(rec))
	session := repl.NewSession(interp, repl.WithPrompt(cfg.REPL.Prompt), repl.WithLogger(logger))

	logger.Info("miniredis starting",
		slog.String("version", Version),
		slog.Int("maxmemory", cfg.Cache.MaxMemory),
		slog.String("session", session.ID()),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The watcher lives only as long as the prompt loop.
		defer cancel()
		return session.Run(gctx, stdin, stdout)
	})

	if opts.watch {
		w, err := config.Watch(opts.configPath, func(next config.Config, err error) {
			if err != nil {
				logger.Warn("config reload failed", slog.String("error", err.Error()))
				return
			}
			engine.SetCapacity(next.Cache.MaxMemory)
			logger.Info("config reloaded", slog.Int("maxmemory", next.Cache.MaxMemory))
		})
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	runErr := g.Wait()

	st := engine.Stats()
	attrs := []any{
		slog.Int("used_memory", st.Used),
		slog.Uint64("evicted_keys", st.Evicted),
	}
	if collector != nil {
		totals, err := collector.Totals(context.Background())
		if err != nil {
			logger.Warn("metrics collection failed", slog.String("error", err.Error()))
		}
		for _, name := range []string{
			telemetry.MetricCommands,
			telemetry.MetricEvictions,
			telemetry.MetricExpirations,
		} {
			attrs = append(attrs, slog.Int64(name, totals[name]))
		}
		if err := collector.Shutdown(context.Background()); err != nil {
			logger.Warn("metrics shutdown failed", slog.String("error", err.Error()))
		}
	}
	logger.Info("miniredis stopped", attrs...)

	return runErr
}
