// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics registers the controller's Prometheus collectors:
// HTTP Control Surface traffic, the Channel Queue, the Concurrency
// Limiter, the Upstream Client's circuit breaker, and the Probe
// Runner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Control Surface metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controller_api_requests_total",
			Help: "Total number of HTTP control surface requests.",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "controller_api_request_duration_seconds",
			Help:    "HTTP control surface request duration in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controller_api_rate_limit_hits_total",
			Help: "Total number of rate-limited HTTP requests.",
		},
		[]string{"route"},
	)

	// Upstream Client / circuit breaker metrics.
	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "controller_upstream_call_duration_seconds",
			Help:    "Duration of upstream HTTP calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	UpstreamCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controller_upstream_call_errors_total",
			Help: "Total number of upstream call errors by error class.",
		},
		[]string{"operation", "error_class"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_circuit_breaker_state",
			Help: "Upstream circuit breaker state: 0=closed, 1=half-open, 2=open.",
		},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controller_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions.",
		},
		[]string{"from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controller_circuit_breaker_requests_total",
			Help: "Total number of upstream calls observed by the circuit breaker, by outcome.",
		},
		[]string{"outcome"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_circuit_breaker_consecutive_failures",
			Help: "Consecutive upstream call failures observed by the circuit breaker.",
		},
	)

	// Channel Queue metrics.
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_queue_size",
			Help: "Current number of channels queued for probing.",
		},
	)

	QueueInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_queue_in_progress",
			Help: "Current number of channels actively being probed.",
		},
	)

	QueueCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "controller_queue_completed_total",
			Help: "Total number of channel probe cycles completed successfully.",
		},
	)

	QueueFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "controller_queue_failed_total",
			Help: "Total number of channel probe cycles that ended in failure.",
		},
	)

	// Concurrency Limiter metrics.
	LimiterTokensInUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "controller_limiter_tokens_in_use",
			Help: "Current number of concurrency tokens held, per account.",
		},
		[]string{"account_id"},
	)

	LimiterCapacityExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controller_limiter_capacity_exceeded_total",
			Help: "Total number of try-acquire calls rejected due to exhausted account capacity.",
		},
		[]string{"account_id"},
	)

	LimiterStaleTokensReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "controller_limiter_stale_tokens_reaped_total",
			Help: "Total number of concurrency tokens force-released by the stale-token reaper.",
		},
	)

	// Probe Runner metrics.
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "controller_probe_duration_seconds",
			Help:    "Duration of a single media-analyzer invocation in seconds.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"status"},
	)

	ProbeResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controller_probe_results_total",
			Help: "Total number of probe results by status.",
		},
		[]string{"status"},
	)

	DeadStreamsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_dead_streams_total",
			Help: "Current number of streams recorded in the dead-stream tracker.",
		},
	)

	// Scheduler metrics.
	GlobalActionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "controller_global_actions_total",
			Help: "Total number of completed global actions.",
		},
	)

	StreamCheckingMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_stream_checking_mode",
			Help: "1 when stream_checking_mode is active, 0 otherwise.",
		},
	)
)
