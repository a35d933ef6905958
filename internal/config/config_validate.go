// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "fmt"

// Validate checks structural invariants of the bootstrap config that
// the HTTP layer cannot recover from at runtime. It does not validate
// managed (store-backed) configuration — that validation lives in
// internal/store, closer to where it can surface a 400 to the caller.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url must not be empty")
	}
	if c.Upstream.RetryMax < 0 {
		return fmt.Errorf("upstream.retry_max must be >= 0")
	}
	if c.Analyzer.BinaryPath == "" {
		return fmt.Errorf("analyzer.binary_path must not be empty")
	}
	if c.Analyzer.TimeoutSeconds <= 0 {
		return fmt.Errorf("analyzer.timeout_seconds must be > 0")
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must not be empty")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Engine.GlobalConcurrentLimit <= 0 {
		return fmt.Errorf("engine.global_concurrent_limit must be > 0")
	}
	if c.Engine.ImmunityWindowHours < 0 {
		return fmt.Errorf("engine.immunity_window_hours must be >= 0")
	}
	return nil
}
