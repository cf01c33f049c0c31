// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	if cfg.Realtime.SweepInterval != 30*time.Second {
		t.Errorf("expected 30s sweep interval, got %s", cfg.Realtime.SweepInterval)
	}
	if cfg.Realtime.SessionTimeout != 60*time.Second {
		t.Errorf("expected 60s session timeout, got %s", cfg.Realtime.SessionTimeout)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("expected default port 8787, got %d", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero sweep interval", func(c *Config) { c.Realtime.SweepInterval = 0 }},
		{"zero session timeout", func(c *Config) { c.Realtime.SessionTimeout = 0 }},
		{"timeout shorter than sweep", func(c *Config) {
			c.Realtime.SweepInterval = time.Minute
			c.Realtime.SessionTimeout = time.Second
		}},
		{"zero max message size", func(c *Config) { c.Realtime.MaxMessageSize = 0 }},
		{"zero send buffer", func(c *Config) { c.Realtime.SendBuffer = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("GLASSPANE_SERVER_PORT", "9999")
	t.Setenv("GLASSPANE_REALTIME_SESSION_TIMEOUT", "90s")
	t.Setenv("GLASSPANE_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected env override port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Realtime.SessionTimeout != 90*time.Second {
		t.Errorf("expected 90s session timeout, got %s", cfg.Realtime.SessionTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadParsesCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("GLASSPANE_SERVER_CORS_ORIGINS", "https://glasspane.app, https://staging.glasspane.app")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"https://glasspane.app", "https://staging.glasspane.app"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("expected %d origins, got %v", len(want), cfg.Server.CORSOrigins)
	}
	for i, origin := range want {
		if cfg.Server.CORSOrigins[i] != origin {
			t.Errorf("origin[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], origin)
		}
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 4242\nrealtime:\n  sweep_interval: 5s\n  session_timeout: 10s\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 4242 {
		t.Errorf("expected port 4242 from file, got %d", cfg.Server.Port)
	}
	if cfg.Realtime.SweepInterval != 5*time.Second {
		t.Errorf("expected 5s sweep from file, got %s", cfg.Realtime.SweepInterval)
	}
	// Defaults still apply for untouched sections
	if cfg.Realtime.SendBuffer != 256 {
		t.Errorf("expected default send buffer, got %d", cfg.Realtime.SendBuffer)
	}
}

func TestLoadRejectsInvalidEnvValues(t *testing.T) {
	t.Setenv("GLASSPANE_SERVER_PORT", "0")

	if _, err := Load(); err == nil {
		t.Error("expected validation failure for port 0")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"GLASSPANE_SERVER_PORT", "server.port"},
		{"GLASSPANE_SERVER_CORS_ORIGINS", "server.cors_origins"},
		{"GLASSPANE_REALTIME_SESSION_TIMEOUT", "realtime.session_timeout"},
		{"GLASSPANE_METRICS_ENABLED", "metrics.enabled"},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
