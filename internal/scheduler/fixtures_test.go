// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package scheduler

import (
	"context"
	"sync"

	"github.com/streamforge/controller/internal/models"
)

// fakeIndex is an in-memory Index double, also satisfying
// prober.DataIndex so it can be handed straight to prober.ScoreCached.
type fakeIndex struct {
	mu       sync.Mutex
	channels map[int64]models.Channel
	streams  map[int64]models.Stream
	accounts map[int64]models.M3UAccount
	profiles map[int64][]models.Profile

	refreshStreamsCalls  int
	refreshChannelsCalls int
	refreshAccountsCalls int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		channels: map[int64]models.Channel{},
		streams:  map[int64]models.Stream{},
		accounts: map[int64]models.M3UAccount{},
		profiles: map[int64][]models.Profile{},
	}
}

func (f *fakeIndex) GetChannel(id int64) (models.Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.channels[id]
	return c, ok
}

func (f *fakeIndex) GetStream(id int64) (models.Stream, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streams[id]
	return s, ok
}

func (f *fakeIndex) GetAccount(id int64) (models.M3UAccount, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	return a, ok
}

func (f *fakeIndex) GetAllAvailableProfilesForStream(stream models.Stream) []models.Profile {
	return f.GetAllProfilesForStream(stream)
}

func (f *fakeIndex) GetAllProfilesForStream(stream models.Stream) []models.Profile {
	if stream.M3UAccountID == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[*stream.M3UAccountID]
}

func (f *fakeIndex) ApplyProfileURLTransformation(stream models.Stream, profile models.Profile) string {
	return stream.URL
}

func (f *fakeIndex) ListChannels() []models.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Channel, 0, len(f.channels))
	for _, c := range f.channels {
		out = append(out, c)
	}
	sortChannelsByID(out)
	return out
}

func (f *fakeIndex) ListStreams() []models.Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Stream, 0, len(f.streams))
	for _, s := range f.streams {
		out = append(out, s)
	}
	sortStreamsByID(out)
	return out
}

func (f *fakeIndex) ListAccounts() []models.M3UAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.M3UAccount, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out
}

func (f *fakeIndex) RefreshStreams(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshStreamsCalls++
	return nil
}

func (f *fakeIndex) RefreshChannels(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshChannelsCalls++
	return nil
}

func (f *fakeIndex) RefreshM3UAccounts(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshAccountsCalls++
	return nil
}

func sortChannelsByID(c []models.Channel) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j-1].ID > c[j].ID; j-- {
			c[j-1], c[j] = c[j], c[j-1]
		}
	}
}

func sortStreamsByID(s []models.Stream) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].ID > s[j].ID; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// fakeUpstream records which accounts were asked to refresh.
type fakeUpstream struct {
	mu       sync.Mutex
	refreshed []int64
	failErr  error
}

func (f *fakeUpstream) RefreshM3UAccount(ctx context.Context, id int64) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, id)
	return nil
}

// fakeWriter records the last write-back per channel.
type fakeWriter struct {
	mu     sync.Mutex
	writes map[int64][]int64
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{writes: map[int64][]int64{}}
}

func (f *fakeWriter) UpdateChannelStreams(ctx context.Context, channelID int64, streamIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]int64, len(streamIDs))
	copy(cp, streamIDs)
	f.writes[channelID] = cp
	return nil
}

func acctPtr(id int64) *int64 { return &id }
