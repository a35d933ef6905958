// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the controller's Prometheus collectors via
// the default registry. Import it for its side-effecting
// registration; read the individual collector variables to record
// observations from other packages.
package metrics
