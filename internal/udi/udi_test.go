// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package udi

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/upstream"
)

type fakeFetcher struct {
	accounts []models.M3UAccount
	streams  []models.Stream
	channels []models.Channel
	groups   []models.ChannelGroup
	sessions []models.ProxySession
}

func (f *fakeFetcher) ListM3UAccounts(ctx context.Context) ([]models.M3UAccount, error) {
	return f.accounts, nil
}

func (f *fakeFetcher) ListStreams(ctx context.Context, filter upstream.StreamFilter) ([]models.Stream, error) {
	return f.streams, nil
}

func (f *fakeFetcher) ListChannels(ctx context.Context) ([]models.Channel, error) {
	return f.channels, nil
}

func (f *fakeFetcher) ListChannelGroups(ctx context.Context) ([]models.ChannelGroup, error) {
	return f.groups, nil
}

func (f *fakeFetcher) ProxySessions(ctx context.Context) ([]models.ProxySession, error) {
	return f.sessions, nil
}

func accountID(id int64) *int64 { return &id }

func TestIndex_RefreshesIndependently(t *testing.T) {
	fetcher := &fakeFetcher{
		streams:  []models.Stream{{ID: 1, Name: "ESPN"}},
		channels: []models.Channel{{ID: 10, Name: "Sports"}},
	}
	idx := New(fetcher)

	require.NoError(t, idx.RefreshStreams(context.Background()))
	require.NoError(t, idx.RefreshChannels(context.Background()))

	_, ok := idx.GetChannel(10)
	assert.True(t, ok)
	assert.Len(t, idx.ListChannels(), 1)

	s, ok := idx.GetStream(1)
	assert.True(t, ok)
	if diff := cmp.Diff(models.Stream{ID: 1, Name: "ESPN"}, s); diff != "" {
		t.Errorf("stream round-trip mismatch (-want +got):\n%s", diff)
	}

	_, ok = idx.GetStream(999)
	assert.False(t, ok)
}

func TestIndex_GetAccount(t *testing.T) {
	fetcher := &fakeFetcher{
		accounts: []models.M3UAccount{{ID: 1, Name: "Provider A"}},
	}
	idx := New(fetcher)
	require.NoError(t, idx.RefreshM3UAccounts(context.Background()))

	a, ok := idx.GetAccount(1)
	assert.True(t, ok)
	assert.Equal(t, "Provider A", a.Name)

	_, ok = idx.GetAccount(2)
	assert.False(t, ok)
}

func TestIndex_ListStreams(t *testing.T) {
	fetcher := &fakeFetcher{
		streams: []models.Stream{{ID: 2, Name: "B"}, {ID: 1, Name: "A"}},
	}
	idx := New(fetcher)
	require.NoError(t, idx.RefreshStreams(context.Background()))

	got := idx.ListStreams()
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestIndex_ListAccounts(t *testing.T) {
	fetcher := &fakeFetcher{
		accounts: []models.M3UAccount{{ID: 2, Name: "B"}, {ID: 1, Name: "A"}},
	}
	idx := New(fetcher)
	require.NoError(t, idx.RefreshM3UAccounts(context.Background()))

	got := idx.ListAccounts()
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestIndex_GetStreamsMatching(t *testing.T) {
	fetcher := &fakeFetcher{
		streams: []models.Stream{
			{ID: 1, Name: "ESPN HD", M3UAccountID: accountID(1)},
			{ID: 2, Name: "ESPN2 HD", M3UAccountID: accountID(2)},
			{ID: 3, Name: "CNN", M3UAccountID: accountID(1)},
		},
	}
	idx := New(fetcher)
	require.NoError(t, idx.RefreshStreams(context.Background()))

	pattern := regexp.MustCompile(`^ESPN`)
	all := idx.GetStreamsMatching(pattern, nil)
	assert.Len(t, all, 2)

	restricted := idx.GetStreamsMatching(pattern, map[int64]struct{}{1: {}})
	require.Len(t, restricted, 1)
	assert.Equal(t, int64(1), restricted[0].ID)
}

func TestIndex_ActiveSessionsForAccount(t *testing.T) {
	fetcher := &fakeFetcher{
		accounts: []models.M3UAccount{
			{ID: 1, Profiles: []models.Profile{{ID: 100, AccountID: 1}}},
		},
		sessions: []models.ProxySession{
			{ChannelID: 10, State: models.ProxySessionActive, M3UProfileID: 100},
			{ChannelID: 11, State: models.ProxySessionIdle, M3UProfileID: 100},
		},
	}
	idx := New(fetcher)
	require.NoError(t, idx.RefreshM3UAccounts(context.Background()))
	require.NoError(t, idx.RefreshProxySessions(context.Background()))

	assert.Equal(t, 1, idx.ActiveSessionsForAccount(1))
	assert.Equal(t, 0, idx.ActiveSessionsForAccount(2))
}

func TestIndex_GetAllAvailableProfilesForStream_RespectsCapacity(t *testing.T) {
	fetcher := &fakeFetcher{
		accounts: []models.M3UAccount{
			{ID: 1, Profiles: []models.Profile{
				{ID: 100, AccountID: 1, IsActive: true, MaxStreams: 1},
				{ID: 101, AccountID: 1, IsActive: true, MaxStreams: 0},
			}},
		},
		sessions: []models.ProxySession{
			{ChannelID: 10, State: models.ProxySessionActive, M3UProfileID: 100},
		},
	}
	idx := New(fetcher)
	require.NoError(t, idx.RefreshM3UAccounts(context.Background()))
	require.NoError(t, idx.RefreshProxySessions(context.Background()))

	stream := models.Stream{ID: 1, M3UAccountID: accountID(1)}
	available := idx.GetAllAvailableProfilesForStream(stream)
	require.Len(t, available, 1)
	assert.Equal(t, int64(101), available[0].ID)
}

func TestIndex_ApplyProfileURLTransformation(t *testing.T) {
	idx := New(&fakeFetcher{})
	stream := models.Stream{URL: "http://origin.example/live/channel1.m3u8"}
	profile := models.Profile{SearchPattern: `^http://origin\.example`, ReplacePattern: "http://proxy.example"}

	got := idx.ApplyProfileURLTransformation(stream, profile)
	assert.Equal(t, "http://proxy.example/live/channel1.m3u8", got)

	noMatch := models.Profile{SearchPattern: `^https://`, ReplacePattern: "unused"}
	assert.Equal(t, stream.URL, idx.ApplyProfileURLTransformation(stream, noMatch))

	noPattern := models.Profile{}
	assert.Equal(t, stream.URL, idx.ApplyProfileURLTransformation(stream, noPattern))
}

func TestIndex_ListGroups_FiltersEmpty(t *testing.T) {
	fetcher := &fakeFetcher{
		groups: []models.ChannelGroup{
			{ID: 1, Name: "News", ChannelCount: 3},
			{ID: 2, Name: "Empty", ChannelCount: 0},
		},
	}
	idx := New(fetcher)
	require.NoError(t, idx.RefreshChannelGroups(context.Background()))

	assert.Len(t, idx.ListGroups(true), 1)
	assert.Len(t, idx.ListGroups(false), 2)
}
