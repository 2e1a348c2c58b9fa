package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc receives the reloaded configuration, or the error that
// prevented reloading it.
type ChangeFunc func(cfg Config, err error)

// Watcher reloads a configuration file when it changes on disk.
//
// It watches the file's directory rather than the file itself: editors that
// save by writing a temp file and renaming it would otherwise drop the watch.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	onChange ChangeFunc
	debounce time.Duration
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce collapses bursts of events within d into one reload.
// Default 100ms.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watch prepares a watcher for path. Nothing is delivered until Run.
func Watch(path string, onChange ChangeFunc, opts ...WatchOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if _, err := DetectFormat(path); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("config: watch directory %s: %w", dir, err), fsw.Close())
	}

	w := &Watcher{
		path:     path,
		fs:       fsw,
		onChange: onChange,
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run delivers changes until ctx is canceled, then releases the watch.
// The callback always runs on the goroutine that called Run.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	name := filepath.Base(w.path)
	// Armed only after a relevant event.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.notify(Config{}, fmt.Errorf("config: watch error: %w", err))

		case <-timer.C:
			cfg, err := Load(w.path)
			w.notify(cfg, err)
		}
	}
}

func (w *Watcher) notify(cfg Config, err error) {
	if w.onChange != nil {
		w.onChange(cfg, err)
	}
}
