package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"  debug  ", slog.LevelDebug, false},
		{"trace", LevelTrace, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLogLevel(%q): expected error, got none", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLogLevel(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Port != 8787 {
		t.Errorf("default port = %d, want 8787", cfg.Listen.Port)
	}
	if cfg.Session.DurationSec != 300 {
		t.Errorf("default duration = %d, want 300", cfg.Session.DurationSec)
	}
	if cfg.Session.IdleTTL != Duration(24*time.Hour) {
		t.Errorf("default idle TTL = %v, want 24h", cfg.Session.IdleTTL)
	}
	if cfg.Gateway.MaxAttempts != 3 {
		t.Errorf("default max attempts = %d, want 3", cfg.Gateway.MaxAttempts)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lifesim.yaml")
	data := `
listen:
  port: 9999
session:
  duration_sec: 120
  idle_ttl: 2h
log_level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Listen.Port)
	}
	if cfg.Session.DurationSec != 120 {
		t.Errorf("duration = %d, want 120", cfg.Session.DurationSec)
	}
	if cfg.Session.IdleTTL != Duration(2*time.Hour) {
		t.Errorf("idle TTL = %v, want 2h", cfg.Session.IdleTTL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	// Values not in the file keep their defaults.
	if cfg.Gateway.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want default 3", cfg.Gateway.MaxAttempts)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LIFESIM_LISTEN_PORT", "4242")
	t.Setenv("LIFESIM_SESSION_IDLE_TTL", "1h")
	t.Setenv("LIFESIM_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Port != 4242 {
		t.Errorf("port = %d, want env override 4242", cfg.Listen.Port)
	}
	if cfg.Session.IdleTTL != Duration(time.Hour) {
		t.Errorf("idle TTL = %v, want 1h", cfg.Session.IdleTTL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q, want warn", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero duration", map[string]string{"LIFESIM_SESSION_DURATION_SEC": "0"}},
		{"bad port", map[string]string{"LIFESIM_LISTEN_PORT": "99999"}},
		{"bad level", map[string]string{"LIFESIM_LOG_LEVEL": "shouty"}},
		{"zero attempts", map[string]string{"LIFESIM_GATEWAY_MAX_ATTEMPTS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestFindConfigExplicitMissing(t *testing.T) {
	if _, err := FindConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}
