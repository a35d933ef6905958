// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the controller's bootstrap (process-level)
// configuration: where the upstream lives, how to reach it, where the
// managed config store persists its JSON blobs, and the default
// concurrency/scheduling knobs used before any HTTP override.
//
// Bootstrap config is intentionally small — everything that can
// change at runtime via the HTTP Control Surface lives in
// internal/store instead, not here.
package config

import "time"

// Config is the fully-resolved bootstrap configuration.
type Config struct {
	// Upstream is how the Upstream Client reaches the IPTV management
	// service.
	Upstream UpstreamConfig `koanf:"upstream"`

	// Analyzer configures the media-analyzer subprocess wrapper.
	Analyzer AnalyzerConfig `koanf:"analyzer"`

	// Store configures where the Config Store persists its JSON files.
	Store StoreConfig `koanf:"store"`

	// Server configures the HTTP Control Surface.
	Server ServerConfig `koanf:"server"`

	// Engine configures default scheduling/concurrency values used
	// until overridden by the managed automation/stream_checker
	// config blobs.
	Engine EngineConfig `koanf:"engine"`

	// Logging configures the structured logger.
	Logging LoggingConfig `koanf:"logging"`
}

// UpstreamConfig describes the upstream IPTV management service.
type UpstreamConfig struct {
	BaseURL      string        `koanf:"base_url"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	Timeout      time.Duration `koanf:"timeout"`
	RetryMax     int           `koanf:"retry_max"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	Proxy        string        `koanf:"proxy"`
}

// AnalyzerConfig locates and parameterizes the media-analyzer
// subprocess.
type AnalyzerConfig struct {
	BinaryPath         string        `koanf:"binary_path"`
	DurationSeconds    int           `koanf:"duration_seconds"`
	TimeoutSeconds     int           `koanf:"timeout_seconds"`
	Retries            int           `koanf:"retries"`
	RetryDelaySeconds  int           `koanf:"retry_delay_seconds"`
	UserAgent          string        `koanf:"user_agent"`
}

// StoreConfig locates the Config Store's JSON files on disk.
type StoreConfig struct {
	Dir string `koanf:"dir"`
}

// ServerConfig configures the HTTP Control Surface.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitRPS    int           `koanf:"rate_limit_rps"`
}

// EngineConfig holds default scheduling/concurrency parameters.
type EngineConfig struct {
	PlaylistUpdateIntervalMinutes int `koanf:"playlist_update_interval_minutes"`
	GlobalConcurrentLimit         int `koanf:"global_concurrent_limit"`
	ImmunityWindowHours           int `koanf:"immunity_window_hours"`
	StaleTokenThreshold           time.Duration `koanf:"stale_token_threshold"`
}

// LoggingConfig configures the zerolog sink.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a Config populated with sensible defaults. Load
// applies this first, then overrides with environment variables.
func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:        "http://localhost:9191",
			Timeout:        15 * time.Second,
			RetryMax:       3,
			RetryBaseDelay: 500 * time.Millisecond,
		},
		Analyzer: AnalyzerConfig{
			BinaryPath:        "ffprobe",
			DurationSeconds:   10,
			TimeoutSeconds:    20,
			Retries:           2,
			RetryDelaySeconds: 3,
			UserAgent:         "StreamForgeController/1.0",
		},
		Store: StoreConfig{
			Dir: "./data",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitRPS:    5,
		},
		Engine: EngineConfig{
			PlaylistUpdateIntervalMinutes: 60,
			GlobalConcurrentLimit:         8,
			ImmunityWindowHours:           2,
			StaleTokenThreshold:           time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
