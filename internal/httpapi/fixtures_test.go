// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamforge/controller/internal/changelog"
	"github.com/streamforge/controller/internal/config"
	"github.com/streamforge/controller/internal/deadstream"
	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/probestore"
	"github.com/streamforge/controller/internal/queue"
	"github.com/streamforge/controller/internal/regexstore"
	"github.com/streamforge/controller/internal/scheduler"
	"github.com/streamforge/controller/internal/settings"
	"github.com/streamforge/controller/internal/store"
	"github.com/streamforge/controller/internal/updatetracker"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Addr:         ":0",
		RateLimitRPS: 10000,
		CORSOrigins:  []string{"*"},
	}
}

func bytesReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}

// fakeIndex is a minimal Index double satisfying both httpapi.Index and
// scheduler.Index, so the same fixture backs the Scheduler the router
// delegates manual triggers to.
type fakeIndex struct {
	channels map[int64]models.Channel
	streams  map[int64]models.Stream
	accounts map[int64]models.M3UAccount
	groups   map[int64]models.ChannelGroup
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		channels: map[int64]models.Channel{},
		streams:  map[int64]models.Stream{},
		accounts: map[int64]models.M3UAccount{},
		groups:   map[int64]models.ChannelGroup{},
	}
}

func (f *fakeIndex) GetChannel(id int64) (models.Channel, bool) {
	c, ok := f.channels[id]
	return c, ok
}

func (f *fakeIndex) GetStream(id int64) (models.Stream, bool) {
	s, ok := f.streams[id]
	return s, ok
}

func (f *fakeIndex) GetAccount(id int64) (models.M3UAccount, bool) {
	a, ok := f.accounts[id]
	return a, ok
}

func (f *fakeIndex) GetAllAvailableProfilesForStream(stream models.Stream) []models.Profile {
	return nil
}

func (f *fakeIndex) GetAllProfilesForStream(stream models.Stream) []models.Profile {
	return nil
}

func (f *fakeIndex) ApplyProfileURLTransformation(stream models.Stream, profile models.Profile) string {
	return stream.URL
}

func (f *fakeIndex) ListChannels() []models.Channel {
	out := make([]models.Channel, 0, len(f.channels))
	for _, c := range f.channels {
		out = append(out, c)
	}
	return out
}

func (f *fakeIndex) ListStreams() []models.Stream {
	out := make([]models.Stream, 0, len(f.streams))
	for _, s := range f.streams {
		out = append(out, s)
	}
	return out
}

func (f *fakeIndex) ListAccounts() []models.M3UAccount {
	out := make([]models.M3UAccount, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out
}

func (f *fakeIndex) ListGroups(onlyNonEmpty bool) []models.ChannelGroup {
	out := make([]models.ChannelGroup, 0, len(f.groups))
	for _, g := range f.groups {
		if onlyNonEmpty && g.ChannelCount == 0 {
			continue
		}
		out = append(out, g)
	}
	return out
}

func (f *fakeIndex) RefreshStreams(ctx context.Context) error  { return nil }
func (f *fakeIndex) RefreshChannels(ctx context.Context) error { return nil }

type fakeUpstream struct{}

func (f *fakeUpstream) RefreshM3UAccount(ctx context.Context, id int64) error { return nil }

type fakeWriter struct{}

func (f *fakeWriter) UpdateChannelStreams(ctx context.Context, channelID int64, streamIDs []int64) error {
	return nil
}

// testRig bundles a fully wired Handler plus its backing engine
// packages against a scratch directory, for handler-level HTTP tests.
type testRig struct {
	handler *Handler
	idx     *fakeIndex
	set     *settings.Store
	rx      *regexstore.Store
	str     *store.Store
	q       *queue.Queue
	dead    *deadstream.Tracker
	cl      *changelog.Log
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	dir := t.TempDir()

	probes, err := probestore.Open(dir)
	require.NoError(t, err)
	dead, err := deadstream.Open(dir)
	require.NoError(t, err)
	updates, err := updatetracker.Open(dir)
	require.NoError(t, err)
	cl, err := changelog.Open(dir)
	require.NoError(t, err)
	set, err := settings.Open(dir)
	require.NoError(t, err)
	rx, err := regexstore.Open(dir)
	require.NoError(t, err)
	str, err := store.Open(dir, nil)
	require.NoError(t, err)

	idx := newFakeIndex()
	q := queue.New()
	sched := scheduler.New(idx, &fakeUpstream{}, &fakeWriter{}, str, rx, set, q, updates, dead, probes, cl)

	handler := NewHandler(idx, sched, str, set, rx, dead, cl, q)

	return &testRig{handler: handler, idx: idx, set: set, rx: rx, str: str, q: q, dead: dead, cl: cl}
}

func (rig *testRig) router() http.Handler {
	return NewRouter(rig.handler, testServerConfig())
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytesReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
