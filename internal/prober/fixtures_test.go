// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package prober

import (
	"context"
	"sync"

	"github.com/streamforge/controller/internal/analyzer"
	"github.com/streamforge/controller/internal/limiter"
	"github.com/streamforge/controller/internal/models"
)

// fakeUDI is an in-memory DataIndex double.
type fakeUDI struct {
	channels map[int64]models.Channel
	streams  map[int64]models.Stream
	accounts map[int64]models.M3UAccount
	profiles map[int64][]models.Profile // account id -> profiles
	active   map[int64]int              // profile id -> active sessions

	// availabilityCalls counts GetAllAvailableProfilesForStream
	// invocations; unlockAfterCall, if set for a profile id, makes that
	// profile available starting on the given call number (1-indexed),
	// simulating a profile freeing up mid phase-2-poll.
	availabilityCalls int
	unlockAfterCall   map[int64]int
}

func newFakeUDI() *fakeUDI {
	return &fakeUDI{
		channels:        map[int64]models.Channel{},
		streams:         map[int64]models.Stream{},
		accounts:        map[int64]models.M3UAccount{},
		profiles:        map[int64][]models.Profile{},
		active:          map[int64]int{},
		unlockAfterCall: map[int64]int{},
	}
}

func (f *fakeUDI) GetChannel(id int64) (models.Channel, bool) {
	c, ok := f.channels[id]
	return c, ok
}

func (f *fakeUDI) GetStream(id int64) (models.Stream, bool) {
	s, ok := f.streams[id]
	return s, ok
}

func (f *fakeUDI) GetAccount(id int64) (models.M3UAccount, bool) {
	a, ok := f.accounts[id]
	return a, ok
}

func (f *fakeUDI) GetAllProfilesForStream(stream models.Stream) []models.Profile {
	if stream.M3UAccountID == nil {
		return nil
	}
	return f.profiles[*stream.M3UAccountID]
}

func (f *fakeUDI) GetAllAvailableProfilesForStream(stream models.Stream) []models.Profile {
	f.availabilityCalls++
	all := f.GetAllProfilesForStream(stream)
	out := make([]models.Profile, 0, len(all))
	for _, p := range all {
		if unlockAt, ok := f.unlockAfterCall[p.ID]; ok && f.availabilityCalls < unlockAt {
			continue
		}
		if p.Available(f.active[p.ID]) {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeUDI) ApplyProfileURLTransformation(stream models.Stream, profile models.Profile) string {
	return stream.URL
}

// fakeAnalyzer returns a scripted sequence of results, one per call,
// keyed by the profile-rewritten URL (here just the stream URL, since
// fakeUDI's transform is the identity).
type fakeAnalyzer struct {
	mu      sync.Mutex
	results map[string][]analyzer.Result // url -> queue of results
	calls   int
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{results: map[string][]analyzer.Result{}}
}

func (f *fakeAnalyzer) script(url string, results ...analyzer.Result) {
	f.results[url] = results
}

func (f *fakeAnalyzer) Probe(ctx context.Context, p analyzer.Params) analyzer.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	q := f.results[p.URL]
	if len(q) == 0 {
		return analyzer.Result{Status: analyzer.StatusError, Error: "no scripted result"}
	}
	next := q[0]
	f.results[p.URL] = q[1:]
	return next
}

// fakeLimiter always grants capacity, tracking acquire/release counts.
type fakeLimiter struct {
	mu        sync.Mutex
	acquired  int
	released  int
	denyAll   bool
	nextToken uint64
}

func (f *fakeLimiter) TryAcquire(accountID int64, accountCapacity int, profileID *int64, profileCapacity int) (limiter.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyAll {
		return limiter.Token{}, limiter.ErrCapacityExceeded
	}
	f.acquired++
	f.nextToken++
	return limiter.Token{}, nil
}

func (f *fakeLimiter) Release(token limiter.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

// fakeWriter records the last write-back per channel.
type fakeWriter struct {
	mu      sync.Mutex
	writes  map[int64][]int64
	failErr error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{writes: map[int64][]int64{}}
}

func (f *fakeWriter) UpdateChannelStreams(ctx context.Context, channelID int64, streamIDs []int64) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]int64, len(streamIDs))
	copy(cp, streamIDs)
	f.writes[channelID] = cp
	return nil
}

func acctPtr(id int64) *int64 { return &id }
