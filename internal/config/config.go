// Package config handles lifesim configuration loading.
//
// Configuration comes from a YAML file discovered via [DefaultSearchPaths],
// with LIFESIM_* environment variables layered on top so that container
// deployments can run without a config file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./lifesim.yaml, ~/.config/lifesim/lifesim.yaml, /etc/lifesim/lifesim.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"lifesim.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "lifesim", "lifesim.yaml"))
	}

	paths = append(paths, "/etc/lifesim/lifesim.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns an empty path (and no error) when nothing was found — the server
// can run on defaults plus environment variables.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

// Config holds all lifesim configuration.
type Config struct {
	Listen   ListenConfig  `yaml:"listen" envPrefix:"LISTEN_"`
	Session  SessionConfig `yaml:"session" envPrefix:"SESSION_"`
	Gateway  GatewayConfig `yaml:"gateway" envPrefix:"GATEWAY_"`
	Archive  ArchiveConfig `yaml:"archive" envPrefix:"ARCHIVE_"`
	LogLevel string        `yaml:"log_level" env:"LOG_LEVEL"`
}

// Duration wraps time.Duration so that values like "24h" parse from
// both YAML and environment variables.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// UnmarshalText implements encoding.TextUnmarshaler, which caarlos0/env
// uses for custom types.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// ListenConfig defines the HTTP server bind address.
type ListenConfig struct {
	Address string `yaml:"address" env:"ADDRESS"` // default "" = all interfaces
	Port    int    `yaml:"port" env:"PORT"`       // default 8787
}

// SessionConfig defines game session behavior.
type SessionConfig struct {
	// DurationSec is the playable time budget of one game session.
	// Once elapsed, every subsequent turn compiles as an ending turn.
	DurationSec int `yaml:"duration_sec" env:"DURATION_SEC"`

	// IdleTTL evicts sessions with no activity for this long.
	// Zero disables eviction, restoring unbounded process-lifetime growth.
	IdleTTL Duration `yaml:"idle_ttl" env:"IDLE_TTL"`
}

// GatewayConfig defines model gateway retry behavior.
type GatewayConfig struct {
	// MaxAttempts is the per-turn upstream attempt budget (default 3).
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`

	// RequestTimeoutSec bounds a single upstream HTTP request (default 90).
	RequestTimeoutSec int `yaml:"request_timeout_sec" env:"REQUEST_TIMEOUT_SEC"`
}

// ArchiveConfig defines the optional turn transcript database.
// The archive is diagnostic only: it is never read back into game state.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// Defaults returns a Config with all defaults applied.
func Defaults() Config {
	return Config{
		Listen: ListenConfig{Port: 8787},
		Session: SessionConfig{
			DurationSec: 300,
			IdleTTL:     Duration(24 * time.Hour),
		},
		Gateway: GatewayConfig{
			MaxAttempts:       3,
			RequestTimeoutSec: 90,
		},
		Archive:  ArchiveConfig{Path: "lifesim-archive.db"},
		LogLevel: "info",
	}
}

// Load reads configuration from path (may be empty for defaults-only),
// then applies LIFESIM_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "LIFESIM_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if c.Session.DurationSec <= 0 {
		return fmt.Errorf("session.duration_sec must be positive, got %d", c.Session.DurationSec)
	}
	if c.Session.IdleTTL < 0 {
		return fmt.Errorf("session.idle_ttl must not be negative, got %s", c.Session.IdleTTL)
	}
	if c.Gateway.MaxAttempts <= 0 {
		return fmt.Errorf("gateway.max_attempts must be positive, got %d", c.Gateway.MaxAttempts)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.enabled requires archive.path")
	}
	return nil
}
