// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Load builds the bootstrap Config: defaults first, overridden by
// environment variables. Unknown environment keys are ignored — they
// simply don't map onto any koanf path and are dropped silently; no
// warning is logged for them.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	envProvider := env.Provider("", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return cfg, nil
}

// envTransform maps flat environment variable names onto nested koanf
// paths, e.g. UPSTREAM_BASE_URL -> upstream.base_url.
func envTransform(key string) string {
	key = strings.ToLower(key)

	mappings := map[string]string{
		"upstream_base_url":        "upstream.base_url",
		"upstream_username":        "upstream.username",
		"upstream_password":        "upstream.password",
		"upstream_timeout":         "upstream.timeout",
		"upstream_retry_max":       "upstream.retry_max",
		"upstream_retry_base_delay": "upstream.retry_base_delay",
		"upstream_proxy":           "upstream.proxy",

		"analyzer_binary_path":        "analyzer.binary_path",
		"analyzer_duration_seconds":   "analyzer.duration_seconds",
		"analyzer_timeout_seconds":    "analyzer.timeout_seconds",
		"analyzer_retries":            "analyzer.retries",
		"analyzer_retry_delay_seconds": "analyzer.retry_delay_seconds",
		"analyzer_user_agent":         "analyzer.user_agent",

		"config_dir": "store.dir",

		"server_addr":             "server.addr",
		"server_read_timeout":     "server.read_timeout",
		"server_write_timeout":    "server.write_timeout",
		"server_shutdown_timeout": "server.shutdown_timeout",
		"server_rate_limit_rps":   "server.rate_limit_rps",

		"engine_playlist_update_interval_minutes": "engine.playlist_update_interval_minutes",
		"engine_global_concurrent_limit":          "engine.global_concurrent_limit",
		"engine_immunity_window_hours":            "engine.immunity_window_hours",
		"engine_stale_token_threshold":            "engine.stale_token_threshold",

		"log_level":  "logging.level",
		"log_format": "logging.format",
	}

	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return ""
}
