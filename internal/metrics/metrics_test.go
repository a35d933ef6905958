// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAPIRequestsTotal_Increments(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/status", "200"))
	APIRequestsTotal.WithLabelValues("GET", "/status", "200").Inc()
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/status", "200"))
	assert.Equal(t, before+1, after)
}

func TestQueueSize_Gauge(t *testing.T) {
	QueueSize.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(QueueSize))
	QueueSize.Set(0)
}

func TestCircuitBreakerState_Gauge(t *testing.T) {
	CircuitBreakerState.Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(CircuitBreakerState))
	CircuitBreakerState.Set(0)
}
