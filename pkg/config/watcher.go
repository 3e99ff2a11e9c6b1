// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls the configuration source for file changes and republishes
// the loaded Config. A reload repeats the exact load the watcher was built
// from, so profile overlays and --set overrides survive every reload.
type Watcher struct {
	mu        sync.Mutex
	reload    func() (*Config, error)
	paths     []string
	modTimes  map[string]time.Time
	interval  time.Duration
	current   *Config
	listeners []func(*Config)
	stopCh    chan struct{}
	doneCh    chan struct{}
	log       *slog.Logger
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger used for reload events.
func WithWatchLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = log }
}

// NewWatcher watches the given config file and, when a profile is set, its
// overlay file. An empty path yields a watcher that never fires but still
// serves the defaults-plus-env Config.
func NewWatcher(path, profile string, opts ...WatcherOption) (*Watcher, error) {
	return newWatcher(
		func() (*Config, error) { return load(path, profile, nil) },
		watchPaths(path, profile),
		opts,
	)
}

// WatchWithCLI builds a watcher from the same CLI arguments LoadWithCLI
// accepts, so `--set` overrides keep winning after each reload.
func WatchWithCLI(args []string, opts ...WatcherOption) (*Watcher, error) {
	path, profile, overrides, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return newWatcher(
		func() (*Config, error) { return load(path, profile, overrides) },
		watchPaths(path, profile),
		opts,
	)
}

func newWatcher(reload func() (*Config, error), paths []string, opts []WatcherOption) (*Watcher, error) {
	w := &Watcher{
		reload:   reload,
		paths:    paths,
		modTimes: make(map[string]time.Time),
		interval: time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, path := range paths {
		if info, err := os.Stat(path); err == nil {
			w.modTimes[path] = info.ModTime()
		}
	}

	cfg, err := reload()
	if err != nil {
		return nil, err
	}
	w.current = cfg
	return w, nil
}

func watchPaths(path, profile string) []string {
	if path == "" {
		return nil
	}
	paths := []string{path}
	if overlay := profileConfigPath(path, profile); overlay != "" {
		paths = append(paths, overlay)
	}
	return paths
}

// OnChange registers a callback invoked with every successfully reloaded
// Config. Register before Start.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Start begins polling until the context is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop halts polling and waits for the poll loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.changed() {
				w.publish()
			}
		}
	}
}

// changed compares file mtimes against the last observed ones. A file that
// disappears is ignored until it comes back.
func (w *Watcher) changed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirty := false
	for _, path := range w.paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if last, seen := w.modTimes[path]; !seen || info.ModTime().After(last) {
			w.modTimes[path] = info.ModTime()
			dirty = true
		}
	}
	return dirty
}

func (w *Watcher) publish() {
	cfg, err := w.reload()
	if err != nil {
		w.log.Error("config.reload.failed", "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	listeners := make([]func(*Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	w.log.Info("config.reloaded", "log_level", cfg.Log.Level)
	for _, fn := range listeners {
		fn(cfg)
	}
}
