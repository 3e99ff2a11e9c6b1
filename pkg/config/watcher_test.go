// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestWatcherDetectsChanges(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "log:\n  level: info\n")

	watcher, err := NewWatcher(configPath, "", WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	changes := make(chan *Config, 1)
	watcher.OnChange(func(cfg *Config) {
		changes <- cfg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	if got := watcher.Config().Log.Level; got != "info" {
		t.Errorf("initial level: got %q, want info", got)
	}

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, configPath, "log:\n  level: debug\n")

	select {
	case newCfg := <-changes:
		if newCfg.Log.Level != "debug" {
			t.Errorf("reloaded level: got %q, want debug", newCfg.Log.Level)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for config change notification")
	}
}

func TestWatcherReloadKeepsCLIOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "boundary:\n  max_retries: 3\n")

	watcher, err := WatchWithCLI(
		[]string{"--config", configPath, "--set", "boundary.max_retries=7"},
		WithWatchInterval(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("WatchWithCLI failed: %v", err)
	}

	if got := watcher.Config().Boundary.MaxRetries; got != 7 {
		t.Fatalf("initial max retries: got %d, want CLI override 7", got)
	}

	changes := make(chan *Config, 1)
	watcher.OnChange(func(cfg *Config) {
		changes <- cfg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, configPath, "boundary:\n  max_retries: 5\nlog:\n  level: warn\n")

	select {
	case newCfg := <-changes:
		if newCfg.Log.Level != "warn" {
			t.Errorf("reloaded level: got %q, want warn", newCfg.Log.Level)
		}
		if newCfg.Boundary.MaxRetries != 7 {
			t.Errorf("override lost on reload: got %d, want 7", newCfg.Boundary.MaxRetries)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for config change notification")
	}
}

func TestWatcherWatchesProfileOverlay(t *testing.T) {
	tmpDir := t.TempDir()
	basePath := filepath.Join(tmpDir, "config.yaml")
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	writeConfig(t, basePath, "log:\n  level: info\n")
	writeConfig(t, devPath, "log:\n  level: debug\n")

	watcher, err := NewWatcher(basePath, "dev", WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	if got := watcher.Config().Log.Level; got != "debug" {
		t.Fatalf("initial level: got %q, want overlay debug", got)
	}

	changes := make(chan *Config, 1)
	watcher.OnChange(func(cfg *Config) {
		changes <- cfg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, devPath, "log:\n  level: error\n")

	select {
	case newCfg := <-changes:
		if newCfg.Log.Level != "error" {
			t.Errorf("reloaded level: got %q, want error", newCfg.Log.Level)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for overlay change notification")
	}
}

func TestWatcherMultipleListeners(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "log:\n  level: info\n")

	watcher, err := NewWatcher(configPath, "", WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)
	watcher.OnChange(func(*Config) { first <- struct{}{} })
	watcher.OnChange(func(*Config) { second <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, configPath, "log:\n  level: warn\n")

	for i, ch := range []chan struct{}{first, second} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Errorf("listener %d not notified", i+1)
		}
	}
}

func TestWatcherStops(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "log: {}\n")

	watcher, err := NewWatcher(configPath, "", WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	watcher.Start(context.Background())

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("watcher.Stop() did not complete in time")
	}
}
