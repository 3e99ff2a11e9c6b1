package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Boundary  BoundaryConfig  `koanf:"boundary"`
	SafeMode  SafeModeConfig  `koanf:"safemode"`
	Trail     TrailConfig     `koanf:"trail"`
	Memory    MemoryConfig    `koanf:"memory"`
	Tools     ToolsConfig     `koanf:"tools"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// BoundaryConfig tunes the resilient call boundary around every role.
// Durations are in milliseconds so they round-trip cleanly through YAML
// and environment variables.
type BoundaryConfig struct {
	CallTimeoutMs    int     `koanf:"call_timeout_ms"`
	MaxRetries       int     `koanf:"max_retries"`
	BackoffBaseMs    int     `koanf:"backoff_base_ms"`
	FailureThreshold int     `koanf:"failure_threshold"`
	ResetWindowMs    int     `koanf:"reset_window_ms"`
	MinSourceTrust   float64 `koanf:"min_source_trust"`
}

func (b BoundaryConfig) CallTimeout() time.Duration {
	return time.Duration(b.CallTimeoutMs) * time.Millisecond
}

func (b BoundaryConfig) BackoffBase() time.Duration {
	return time.Duration(b.BackoffBaseMs) * time.Millisecond
}

func (b BoundaryConfig) ResetWindow() time.Duration {
	return time.Duration(b.ResetWindowMs) * time.Millisecond
}

type SafeModeConfig struct {
	ErrorThreshold int `koanf:"error_threshold"`
}

// TrailConfig selects where run outcomes are persisted.
type TrailConfig struct {
	Enabled bool   `koanf:"enabled"`
	Driver  string `koanf:"driver"` // sqlite, memory
	Path    string `koanf:"path"`
}

type MemoryConfig struct {
	Enabled    bool   `koanf:"enabled"`
	QdrantAddr string `koanf:"qdrant_addr"`
	Collection string `koanf:"collection"`
	OllamaURL  string `koanf:"ollama_url"`
	EmbedModel string `koanf:"embed_model"`
}

type ToolsConfig struct {
	MCPEndpoint string `koanf:"mcp_endpoint"`
}

type WorkflowConfig struct {
	Engine string `koanf:"engine"` // none, inprocess, temporal
}

// Load reads configuration from defaults, an optional YAML file and the
// TELOS_ environment, in that order of precedence.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile loads the base file and, when a profile is given,
// overlays config.<profile>.yaml from the same directory if it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI parses --config, --profile (alias --env) and repeated
// --set key=value arguments. CLI overrides win over file and environment.
func LoadWithCLI(args []string) (*Config, error) {
	path, profile, overrides, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(path, profile, overrides)
}

func load(path, profile string, overrides map[string]string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")

	k.Set("boundary.call_timeout_ms", 5000)
	k.Set("boundary.max_retries", 1)
	k.Set("boundary.backoff_base_ms", 50)
	k.Set("boundary.failure_threshold", 3)
	k.Set("boundary.reset_window_ms", 30000)
	k.Set("boundary.min_source_trust", 0.0)

	k.Set("safemode.error_threshold", 5)

	k.Set("trail.enabled", false)
	k.Set("trail.driver", "sqlite")
	k.Set("trail.path", "telos-trail.db")

	k.Set("memory.enabled", false)
	k.Set("memory.qdrant_addr", "localhost:6334")
	k.Set("memory.collection", "telos_memory")
	k.Set("memory.ollama_url", "http://localhost:11434")
	k.Set("memory.embed_model", "nomic-embed-text")

	k.Set("workflow.engine", "none")

	// 1. Load from file, then the profile overlay
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
		if overlay := profileConfigPath(path, profile); overlay != "" {
			if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	// 2. Load from ENV (TELOS_BOUNDARY_MAX_RETRIES -> boundary.max_retries)
	if err := k.Load(env.Provider("TELOS_", ".", envKeyToPath), nil); err != nil {
		return nil, err
	}

	// 3. CLI --set overrides win last
	for key, value := range overrides {
		k.Set(key, value)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKeyToPath maps a TELOS_ variable onto its koanf key. The config tree
// is two levels deep, so only the first underscore separates the section
// from the leaf; the remaining underscores belong to the leaf key
// (TELOS_BOUNDARY_MAX_RETRIES -> boundary.max_retries).
func envKeyToPath(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "TELOS_"))
	section, leaf, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + leaf
}

// profileConfigPath resolves config.yaml + "dev" to config.dev.yaml,
// returning empty when the overlay does not exist.
func profileConfigPath(basePath, profile string) string {
	if basePath == "" || profile == "" {
		return ""
	}
	dir := filepath.Dir(basePath)
	base := filepath.Base(basePath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	overlay := filepath.Join(dir, name+"."+profile+ext)
	if _, err := os.Stat(overlay); err != nil {
		return ""
	}
	return overlay
}

func parseCLIOverrides(args []string) (path, profile string, overrides map[string]string, err error) {
	overrides = make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		takeValue := func(flag string) (string, error) {
			if rest, ok := strings.CutPrefix(arg, flag+"="); ok {
				return rest, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("missing value for %s", flag)
			}
			i++
			return args[i], nil
		}
		switch {
		case arg == "--config" || strings.HasPrefix(arg, "--config="):
			if path, err = takeValue("--config"); err != nil {
				return "", "", nil, err
			}
		case arg == "--profile" || strings.HasPrefix(arg, "--profile="):
			if profile, err = takeValue("--profile"); err != nil {
				return "", "", nil, err
			}
		case arg == "--env" || strings.HasPrefix(arg, "--env="):
			if profile, err = takeValue("--env"); err != nil {
				return "", "", nil, err
			}
		case arg == "--set" || strings.HasPrefix(arg, "--set="):
			var pair string
			if pair, err = takeValue("--set"); err != nil {
				return "", "", nil, err
			}
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return "", "", nil, fmt.Errorf("invalid --set value %q, want key=value", pair)
			}
			overrides[key] = value
		}
	}
	return path, profile, overrides, nil
}
