// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package limiter implements the Concurrency Limiter (spec §4.6):
// per-account and per-profile counted semaphores gating how many
// simultaneous probe sessions each provider may carry, plus a
// stale-token reaper protecting against crashed workers that never
// released their token.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/streamforge/controller/internal/logging"
	"github.com/streamforge/controller/internal/metrics"
)

// ErrCapacityExceeded is returned by TryAcquire when no capacity is
// currently available.
var ErrCapacityExceeded = errors.New("limiter: capacity exceeded")

// Token represents one held slot. Release is idempotent: releasing
// the same token twice, or a zero-value Token, is a no-op.
type Token struct {
	id         uint64
	accountID  int64
	profileID  *int64
	acquiredAt time.Time
	released   bool
}

// gate is a counted semaphore for one entity (account or profile).
// capacity 0 means unlimited: Acquire/TryAcquire always succeed and
// the semaphore is never touched.
type gate struct {
	sem      *semaphore.Weighted
	capacity int
	inUse    int
}

func newGate(capacity int) *gate {
	if capacity <= 0 {
		return &gate{capacity: 0}
	}
	return &gate{sem: semaphore.NewWeighted(int64(capacity)), capacity: capacity}
}

// Limiter is the Concurrency Limiter.
type Limiter struct {
	mu             sync.Mutex
	accountGates   map[int64]*gate
	profileGates   map[int64]*gate
	tokens         map[uint64]Token
	nextTokenID    uint64
	staleThreshold time.Duration
}

// New returns a Limiter reaping tokens held longer than staleThreshold.
func New(staleThreshold time.Duration) *Limiter {
	return &Limiter{
		accountGates: make(map[int64]*gate),
		profileGates: make(map[int64]*gate),
		tokens:       make(map[uint64]Token),
		staleThreshold: staleThreshold,
	}
}

// resize replaces a gate's capacity. It is only safe to call when the
// entity currently has no tokens held — callers re-provision lazily
// the first time a (possibly changed) capacity is observed for an
// idle entity, which is the common case since account/profile configs
// rarely change mid-probe-cycle.
func resize(gates map[int64]*gate, id int64, capacity int) *gate {
	g, ok := gates[id]
	if !ok {
		g = newGate(capacity)
		gates[id] = g
		return g
	}
	if g.capacity != capacity && g.inUse == 0 {
		g = newGate(capacity)
		gates[id] = g
	}
	return g
}

// TryAcquire attempts to reserve one slot on accountID (and, if
// profileID is non-nil, also on that profile) without blocking.
// accountCapacity/profileCapacity of 0 mean unlimited.
func (l *Limiter) TryAcquire(accountID int64, accountCapacity int, profileID *int64, profileCapacity int) (Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	accGate := resize(l.accountGates, accountID, accountCapacity)
	if accGate.sem != nil {
		if !accGate.sem.TryAcquire(1) {
			metrics.LimiterCapacityExceededTotal.WithLabelValues(accountIDLabel(accountID)).Inc()
			return Token{}, ErrCapacityExceeded
		}
	}

	var profGate *gate
	if profileID != nil {
		profGate = resize(l.profileGates, *profileID, profileCapacity)
		if profGate.sem != nil && !profGate.sem.TryAcquire(1) {
			if accGate.sem != nil {
				accGate.sem.Release(1)
			}
			metrics.LimiterCapacityExceededTotal.WithLabelValues(accountIDLabel(accountID)).Inc()
			return Token{}, ErrCapacityExceeded
		}
	}

	return l.record(accountID, accGate, profileID, profGate), nil
}

// Acquire blocks until capacity frees or ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context, accountID int64, accountCapacity int, profileID *int64, profileCapacity int) (Token, error) {
	l.mu.Lock()
	accGate := resize(l.accountGates, accountID, accountCapacity)
	l.mu.Unlock()

	if accGate.sem != nil {
		if err := accGate.sem.Acquire(ctx, 1); err != nil {
			return Token{}, fmt.Errorf("limiter: acquire account %d: %w", accountID, err)
		}
	}

	var profGate *gate
	if profileID != nil {
		l.mu.Lock()
		profGate = resize(l.profileGates, *profileID, profileCapacity)
		l.mu.Unlock()

		if profGate.sem != nil {
			if err := profGate.sem.Acquire(ctx, 1); err != nil {
				if accGate.sem != nil {
					accGate.sem.Release(1)
				}
				return Token{}, fmt.Errorf("limiter: acquire profile %d: %w", *profileID, err)
			}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(accountID, accGate, profileID, profGate), nil
}

// record must be called with l.mu held.
func (l *Limiter) record(accountID int64, accGate *gate, profileID *int64, profGate *gate) Token {
	accGate.inUse++
	if profGate != nil {
		profGate.inUse++
	}

	l.nextTokenID++
	tok := Token{id: l.nextTokenID, accountID: accountID, profileID: profileID, acquiredAt: time.Now()}
	l.tokens[tok.id] = tok
	metrics.LimiterTokensInUse.WithLabelValues(accountIDLabel(accountID)).Inc()
	return tok
}

func accountIDLabel(accountID int64) string {
	return strconv.FormatInt(accountID, 10)
}

// Release returns token's slot(s). Idempotent.
func (l *Limiter) Release(token Token) {
	if token.released || token.id == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked(token)
}

// releaseLocked must be called with l.mu held.
func (l *Limiter) releaseLocked(token Token) {
	stored, ok := l.tokens[token.id]
	if !ok {
		return
	}
	delete(l.tokens, token.id)

	if g, ok := l.accountGates[stored.accountID]; ok {
		g.inUse--
		if g.sem != nil {
			g.sem.Release(1)
		}
	}
	if stored.profileID != nil {
		if g, ok := l.profileGates[*stored.profileID]; ok {
			g.inUse--
			if g.sem != nil {
				g.sem.Release(1)
			}
		}
	}
	metrics.LimiterTokensInUse.WithLabelValues(accountIDLabel(stored.accountID)).Dec()
}

// ReapStale force-releases any token older than the configured
// threshold, logging each one — protection against crashed workers
// that never reached their release path (spec §4.6).
func (l *Limiter) ReapStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stale []Token
	for _, tok := range l.tokens {
		if now.Sub(tok.acquiredAt) > l.staleThreshold {
			stale = append(stale, tok)
		}
	}

	for _, tok := range stale {
		logging.Warn().
			Int64("account_id", tok.accountID).
			Time("acquired_at", tok.acquiredAt).
			Msg("reaping stale concurrency-limiter token")
		l.releaseLocked(tok)
		metrics.LimiterStaleTokensReapedTotal.Inc()
	}
	return len(stale)
}

// InUse returns how many tokens are currently held for accountID.
func (l *Limiter) InUse(accountID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok := l.accountGates[accountID]; ok {
		return g.inUse
	}
	return 0
}
