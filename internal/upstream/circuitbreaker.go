// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/streamforge/controller/internal/logging"
	"github.com/streamforge/controller/internal/metrics"
	"github.com/streamforge/controller/internal/models"
)

// CircuitBreakerClient wraps Client with circuit breaker protection so a
// sustained upstream outage degrades to fast ErrTransient failures
// (rejected while the breaker is open or half-open and saturated)
// instead of piling up slow, doomed requests.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient wraps client with a breaker that opens after a
// 60% failure rate over at least 10 requests, allows 3 concurrent probe
// requests while half-open, and waits 30s before attempting recovery.
func NewCircuitBreakerClient(client *Client) *CircuitBreakerClient {
	cbName := "upstream-api"

	metrics.CircuitBreakerState.Set(0)
	metrics.CircuitBreakerConsecutiveFailures.Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("upstream circuit breaker opening")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("upstream circuit breaker state transition")

			metrics.CircuitBreakerState.Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.Set(0)
			}
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// execute runs fn through the breaker, updating outcome metrics.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(func() (interface{}, error) {
		return fn()
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: circuit breaker open: %v", ErrTransient, err)
		}

		metrics.CircuitBreakerRequests.WithLabelValues("failure").Inc()
		counts := cbc.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.Set(float64(counts.ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues("success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.Set(0)
	return result, nil
}

func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: circuit breaker: unexpected result type %T", ErrPermanent, result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Ping verifies connectivity to the upstream with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.Ping(ctx)
	})
	return err
}

// ListM3UAccounts lists M3U accounts with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListM3UAccounts(ctx context.Context) ([]models.M3UAccount, error) {
	return castResult[[]models.M3UAccount](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListM3UAccounts(ctx)
	}))
}

// RefreshM3UAccount refreshes an M3U account with circuit breaker protection.
func (cbc *CircuitBreakerClient) RefreshM3UAccount(ctx context.Context, id int64) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.RefreshM3UAccount(ctx, id)
	})
	return err
}

// ListStreams lists streams with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListStreams(ctx context.Context, filter StreamFilter) ([]models.Stream, error) {
	return castResult[[]models.Stream](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListStreams(ctx, filter)
	}))
}

// ListChannels lists channels with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListChannels(ctx context.Context) ([]models.Channel, error) {
	return castResult[[]models.Channel](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListChannels(ctx)
	}))
}

// UpdateChannelStreams updates a channel's stream membership with circuit breaker protection.
func (cbc *CircuitBreakerClient) UpdateChannelStreams(ctx context.Context, channelID int64, streamIDs []int64) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.UpdateChannelStreams(ctx, channelID, streamIDs)
	})
	return err
}

// ListChannelGroups lists channel groups with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListChannelGroups(ctx context.Context) ([]models.ChannelGroup, error) {
	return castResult[[]models.ChannelGroup](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListChannelGroups(ctx)
	}))
}

// ProxySessions returns the live proxy session view with circuit breaker protection.
func (cbc *CircuitBreakerClient) ProxySessions(ctx context.Context) ([]models.ProxySession, error) {
	return castResult[[]models.ProxySession](cbc.execute(func() (interface{}, error) {
		return cbc.client.ProxySessions(ctx)
	}))
}
