// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package prober

import (
	"context"
	"sync"
	"time"

	"github.com/streamforge/controller/internal/logging"
	"github.com/streamforge/controller/internal/metrics"
	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/queue"
)

// pollInterval is how often an idle worker re-checks the queue for
// new work.
const pollInterval = 250 * time.Millisecond

// Pool runs a fixed number of workers pulling channel entries off the
// Channel Queue and running them through a Runner (spec §4.8, §5).
type Pool struct {
	queue   *queue.Queue
	runner  *Runner
	workers int
}

// NewPool returns a Pool of workers workers (minimum 1) draining q
// through runner.
func NewPool(q *queue.Queue, runner *Runner, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{queue: q, runner: runner, workers: workers}
}

// Run blocks, running workers until ctx is cancelled. Each worker
// drains its current task before exiting — no channel is probed
// partially and abandoned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
}

// Serve adapts Run to suture.Service so the probing layer's supervisor
// can own the pool's restart-on-panic lifecycle.
func (p *Pool) Serve(ctx context.Context) error {
	p.Run(ctx)
	return ctx.Err()
}

func (p *Pool) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		entry, ok := p.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		p.process(ctx, entry)
	}
}

// process runs one queue entry through the Runner, recovering from
// any panic so a single misbehaving channel cannot take the worker
// down (spec §4.9 "panic in a worker is captured... worker
// continues").
func (p *Pool) process(ctx context.Context, entry models.ChannelQueueEntry) {
	success := false
	defer func() { p.queue.Complete(entry.ChannelID, success) }()
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().
				Interface("panic", rec).
				Int64("channel_id", entry.ChannelID).
				Msg("probe worker recovered from panic")
			metrics.QueueFailedTotal.Inc()
		}
	}()

	if err := p.runner.ProcessChannel(ctx, entry.ChannelID, entry.ForceCheck); err != nil {
		logging.Warn().Err(err).Int64("channel_id", entry.ChannelID).Msg("probe cycle failed")
		metrics.QueueFailedTotal.Inc()
		return
	}
	metrics.QueueCompletedTotal.Inc()
	success = true
}
