// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"  debug ", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := LogLevel(tt.in); got != tt.want {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigureSlogLeveledAdjustsAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	log := ConfigureSlogLeveled(&buf, level, "json")

	log.Debug("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatal("debug record should be filtered at info level")
	}

	level.Set(slog.LevelDebug)
	log.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatal("debug record should pass after lowering the level")
	}
}

func TestConfigureSlogFormats(t *testing.T) {
	var buf bytes.Buffer
	log := ConfigureSlog(&buf, "info", "json")
	log.Info("structured", "key", "value")
	if !strings.Contains(buf.String(), `"key":"value"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	log = ConfigureSlog(&buf, "info", "text")
	log.Info("structured", "key", "value")
	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
