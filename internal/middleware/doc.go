// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package middleware provides chi-compatible HTTP middleware for the
// control surface: request-id/correlation-id propagation, Prometheus
// instrumentation, and response compression.
package middleware
