// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

// Package config provides layered configuration for the realtime broker.
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority
// wins):
//
//   - Environment variables (GLASSPANE_ prefixed)
//   - Config file (config.yaml, or CONFIG_PATH override)
//   - Built-in defaults
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the realtime service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address. Default: 0.0.0.0
	Host string `koanf:"host"`

	// Port is the listen port. Default: 8787
	Port int `koanf:"port"`

	// ReadTimeout bounds request header/body reads.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds response writes. Safe to set globally: hijacked
	// websocket connections are not affected because the upgrader clears
	// the inherited deadline.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout is the graceful shutdown drain window.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed browser origins for both the REST surface
	// and websocket upgrades. "*" allows any origin.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitPerMinute caps requests per client IP on the REST surface.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`
}

// RealtimeConfig holds the presence broker settings.
//
// The sweep interval and session timeout mirror the client keep-alive
// contract: clients send an application-level ping at least once per timeout
// window or they are evicted.
type RealtimeConfig struct {
	// SweepInterval is how often the liveness sweep runs. Default: 30s
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// SessionTimeout is the inactivity threshold after which a session is
	// evicted. Default: 60s
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// WriteWait bounds a single outbound frame write. Default: 10s
	WriteWait time.Duration `koanf:"write_wait"`

	// HandshakeTimeout bounds the websocket upgrade handshake. Default: 10s
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`

	// MaxMessageSize caps inbound frame size in bytes. Default: 512 KB
	MaxMessageSize int64 `koanf:"max_message_size"`

	// SendBuffer is the per-session outbound queue depth. A session whose
	// queue overflows is treated as a failed transport and dropped.
	// Default: 256
	SendBuffer int `koanf:"send_buffer"`

	// BroadcastBuffer is the broker's pending-broadcast queue depth.
	// Default: 256
	BroadcastBuffer int `koanf:"broadcast_buffer"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes caller file:line in log output.
	Caller bool `koanf:"caller"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics when true.
	Enabled bool `koanf:"enabled"`
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rate_limit_per_minute must not be negative")
	}
	return nil
}

func (c *Config) validateRealtime() error {
	if c.Realtime.SweepInterval <= 0 {
		return fmt.Errorf("realtime.sweep_interval must be positive, got %s", c.Realtime.SweepInterval)
	}
	if c.Realtime.SessionTimeout <= 0 {
		return fmt.Errorf("realtime.session_timeout must be positive, got %s", c.Realtime.SessionTimeout)
	}
	if c.Realtime.SessionTimeout < c.Realtime.SweepInterval {
		return fmt.Errorf("realtime.session_timeout (%s) must not be shorter than realtime.sweep_interval (%s)",
			c.Realtime.SessionTimeout, c.Realtime.SweepInterval)
	}
	if c.Realtime.MaxMessageSize <= 0 {
		return fmt.Errorf("realtime.max_message_size must be positive, got %d", c.Realtime.MaxMessageSize)
	}
	if c.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("realtime.send_buffer must be positive, got %d", c.Realtime.SendBuffer)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}
