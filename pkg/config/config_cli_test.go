package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithCLIOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
log:
  level: "info"
telemetry:
  exporter: "stdout"
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.Setenv("TELOS_LOG_LEVEL", "warn"); err != nil {
		t.Fatalf("set env: %v", err)
	}
	defer os.Unsetenv("TELOS_LOG_LEVEL")

	cfg, err := LoadWithCLI([]string{
		"--config", path,
		"--set", "log.level=debug",
		"--set", "trail.enabled=true",
		"--set", "boundary.max_retries=4",
		"--set", "memory.qdrant_addr=qdrant.internal:6334",
	})
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected cli override for log level, got %s", cfg.Log.Level)
	}
	if cfg.Trail.Enabled != true {
		t.Fatalf("expected trail.enabled=true")
	}
	if cfg.Boundary.MaxRetries != 4 {
		t.Fatalf("expected max retries override, got %d", cfg.Boundary.MaxRetries)
	}
	if cfg.Memory.QdrantAddr != "qdrant.internal:6334" {
		t.Fatalf("unexpected qdrant addr: %s", cfg.Memory.QdrantAddr)
	}
}

func TestLoadWithCLIProfile(t *testing.T) {
	tmpDir := t.TempDir()

	baseConfig := `
log:
  level: "info"
`
	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(baseConfig), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	devConfig := `
log:
  level: "debug"
`
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte(devConfig), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	tests := []struct {
		name      string
		args      []string
		wantLevel string
	}{
		{
			name:      "profile flag",
			args:      []string{"--config", basePath, "--profile", "dev"},
			wantLevel: "debug",
		},
		{
			name:      "env flag alias",
			args:      []string{"--config", basePath, "--env", "dev"},
			wantLevel: "debug",
		},
		{
			name:      "profile with equals",
			args:      []string{"--config=" + basePath, "--profile=dev"},
			wantLevel: "debug",
		},
		{
			name:      "env with equals",
			args:      []string{"--config=" + basePath, "--env=dev"},
			wantLevel: "debug",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithCLI(tc.args)
			if err != nil {
				t.Fatalf("LoadWithCLI failed: %v", err)
			}

			if cfg.Log.Level != tc.wantLevel {
				t.Errorf("log level: got %s, want %s", cfg.Log.Level, tc.wantLevel)
			}
		})
	}
}

func TestParseCLIOverridesErrors(t *testing.T) {
	if _, _, _, err := parseCLIOverrides([]string{"--config"}); err == nil {
		t.Fatalf("expected error for missing --config value")
	}
	if _, _, _, err := parseCLIOverrides([]string{"--set"}); err == nil {
		t.Fatalf("expected error for missing --set value")
	}
	if _, _, _, err := parseCLIOverrides([]string{"--set", "invalid"}); err == nil {
		t.Fatalf("expected error for invalid --set value")
	}
}
