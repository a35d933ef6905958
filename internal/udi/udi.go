// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package udi holds the Unified Data Index: an in-memory, indexed view
// of upstream state that is the sole accessor every other component
// uses to read streams, channels, accounts, groups, and live proxy
// sessions. It refreshes its indexes by fetching from the Upstream
// Client and atomically swapping in a new snapshot, so readers started
// before a refresh keep observing a consistent prior view.
package udi

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/streamforge/controller/internal/logging"
	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/upstream"
)

// snapshot is one immutable, fully-indexed view of upstream state.
// Refresh builds a new snapshot and swaps it in atomically; this struct
// itself is never mutated after construction.
type snapshot struct {
	streamsByID  map[int64]models.Stream
	channelsByID map[int64]models.Channel
	groupsByID   map[int64]models.ChannelGroup
	accountsByID map[int64]models.M3UAccount
	profileAccountOf map[int64]int64 // profile id -> account id
	proxySessions    []models.ProxySession
}

func emptySnapshot() *snapshot {
	return &snapshot{
		streamsByID:      map[int64]models.Stream{},
		channelsByID:     map[int64]models.Channel{},
		groupsByID:       map[int64]models.ChannelGroup{},
		accountsByID:     map[int64]models.M3UAccount{},
		profileAccountOf: map[int64]int64{},
	}
}

// Index is the Unified Data Index. Refresh* methods fetch from
// upstream and swap one slice of state; reads never block on writers
// and never observe a partially-updated snapshot.
type Index struct {
	upstream Fetcher
	snap     atomic.Pointer[snapshot]

	// patternCacheMu guards the compiled-regex cache used by
	// ApplyProfileURLTransformation.
	patternCacheMu sync.Mutex
	patternCache   map[string]*regexp.Regexp
}

// Fetcher is the subset of the Upstream Client the index depends on.
// Both upstream.Client and upstream.CircuitBreakerClient satisfy it.
type Fetcher interface {
	ListM3UAccounts(ctx context.Context) ([]models.M3UAccount, error)
	ListStreams(ctx context.Context, filter upstream.StreamFilter) ([]models.Stream, error)
	ListChannels(ctx context.Context) ([]models.Channel, error)
	ListChannelGroups(ctx context.Context) ([]models.ChannelGroup, error)
	ProxySessions(ctx context.Context) ([]models.ProxySession, error)
}

// New builds an empty Index backed by fetcher.
func New(fetcher Fetcher) *Index {
	idx := &Index{
		upstream:     fetcher,
		patternCache: map[string]*regexp.Regexp{},
	}
	idx.snap.Store(emptySnapshot())
	return idx
}

func (idx *Index) current() *snapshot {
	return idx.snap.Load()
}

// cloneSnapshot copies the current snapshot's maps so a Refresh* call
// can replace only its own collection while leaving the others intact.
func (idx *Index) cloneSnapshot() *snapshot {
	cur := idx.current()
	next := &snapshot{
		streamsByID:      make(map[int64]models.Stream, len(cur.streamsByID)),
		channelsByID:     make(map[int64]models.Channel, len(cur.channelsByID)),
		groupsByID:       make(map[int64]models.ChannelGroup, len(cur.groupsByID)),
		accountsByID:     make(map[int64]models.M3UAccount, len(cur.accountsByID)),
		profileAccountOf: make(map[int64]int64, len(cur.profileAccountOf)),
		proxySessions:    cur.proxySessions,
	}
	for k, v := range cur.streamsByID {
		next.streamsByID[k] = v
	}
	for k, v := range cur.channelsByID {
		next.channelsByID[k] = v
	}
	for k, v := range cur.groupsByID {
		next.groupsByID[k] = v
	}
	for k, v := range cur.accountsByID {
		next.accountsByID[k] = v
	}
	for k, v := range cur.profileAccountOf {
		next.profileAccountOf[k] = v
	}
	return next
}

// RefreshStreams fetches every stream from upstream and atomically
// replaces the stream index.
func (idx *Index) RefreshStreams(ctx context.Context) error {
	streams, err := idx.upstream.ListStreams(ctx, upstream.StreamFilter{})
	if err != nil {
		return fmt.Errorf("refresh streams: %w", err)
	}
	next := idx.cloneSnapshot()
	byID := make(map[int64]models.Stream, len(streams))
	for _, s := range streams {
		byID[s.ID] = s
	}
	next.streamsByID = byID
	idx.snap.Store(next)
	return nil
}

// RefreshChannels fetches every channel from upstream and atomically
// replaces the channel index.
func (idx *Index) RefreshChannels(ctx context.Context) error {
	channels, err := idx.upstream.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("refresh channels: %w", err)
	}
	next := idx.cloneSnapshot()
	byID := make(map[int64]models.Channel, len(channels))
	for _, c := range channels {
		byID[c.ID] = c
	}
	next.channelsByID = byID
	idx.snap.Store(next)
	return nil
}

// RefreshM3UAccounts fetches every account from upstream, atomically
// replaces the account index, and rebuilds the derived profile→account
// map used by ActiveSessionsForAccount.
func (idx *Index) RefreshM3UAccounts(ctx context.Context) error {
	accounts, err := idx.upstream.ListM3UAccounts(ctx)
	if err != nil {
		return fmt.Errorf("refresh m3u accounts: %w", err)
	}
	next := idx.cloneSnapshot()
	byID := make(map[int64]models.M3UAccount, len(accounts))
	profileAccountOf := make(map[int64]int64)
	for _, a := range accounts {
		byID[a.ID] = a
		for _, p := range a.Profiles {
			profileAccountOf[p.ID] = a.ID
		}
	}
	next.accountsByID = byID
	next.profileAccountOf = profileAccountOf
	idx.snap.Store(next)
	return nil
}

// RefreshChannelGroups fetches every channel group from upstream and
// atomically replaces the group index.
func (idx *Index) RefreshChannelGroups(ctx context.Context) error {
	groups, err := idx.upstream.ListChannelGroups(ctx)
	if err != nil {
		return fmt.Errorf("refresh channel groups: %w", err)
	}
	next := idx.cloneSnapshot()
	byID := make(map[int64]models.ChannelGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	next.groupsByID = byID
	idx.snap.Store(next)
	return nil
}

// RefreshProxySessions fetches the live proxy session view from
// upstream and atomically replaces it.
func (idx *Index) RefreshProxySessions(ctx context.Context) error {
	sessions, err := idx.upstream.ProxySessions(ctx)
	if err != nil {
		return fmt.Errorf("refresh proxy sessions: %w", err)
	}
	next := idx.cloneSnapshot()
	next.proxySessions = sessions
	idx.snap.Store(next)
	return nil
}

// GetChannel returns the channel with the given id, if present.
func (idx *Index) GetChannel(id int64) (models.Channel, bool) {
	c, ok := idx.current().channelsByID[id]
	return c, ok
}

// GetStream returns the stream with the given id, if present.
func (idx *Index) GetStream(id int64) (models.Stream, bool) {
	s, ok := idx.current().streamsByID[id]
	return s, ok
}

// GetAccount returns the m3u account with the given id, if present.
func (idx *Index) GetAccount(id int64) (models.M3UAccount, bool) {
	a, ok := idx.current().accountsByID[id]
	return a, ok
}

// ListChannels returns every known channel in an unspecified but
// deterministic (id-ascending) order.
func (idx *Index) ListChannels() []models.Channel {
	snap := idx.current()
	out := make([]models.Channel, 0, len(snap.channelsByID))
	for _, c := range snap.channelsByID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListStreams returns every known stream in an unspecified but
// deterministic (id-ascending) order. The Matching Engine's
// orchestration uses this to supply Match's full per-channel
// candidate universe; GetStreamsMatching exists separately for
// standalone pattern-preview queries.
func (idx *Index) ListStreams() []models.Stream {
	snap := idx.current()
	out := make([]models.Stream, 0, len(snap.streamsByID))
	for _, s := range snap.streamsByID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListAccounts returns every known m3u account in an unspecified but
// deterministic (id-ascending) order. The Scheduler's playlist tick
// uses this to enumerate which accounts to ask upstream to refresh.
func (idx *Index) ListAccounts() []models.M3UAccount {
	snap := idx.current()
	out := make([]models.M3UAccount, 0, len(snap.accountsByID))
	for _, a := range snap.accountsByID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListGroups returns channel groups, optionally restricted to those
// with at least one channel.
func (idx *Index) ListGroups(onlyNonEmpty bool) []models.ChannelGroup {
	snap := idx.current()
	out := make([]models.ChannelGroup, 0, len(snap.groupsByID))
	for _, g := range snap.groupsByID {
		if onlyNonEmpty && g.ChannelCount == 0 {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetStreamsMatching returns every known stream matching pattern,
// optionally restricted to a set of account ids. A nil accountFilter
// means no account restriction.
func (idx *Index) GetStreamsMatching(pattern *regexp.Regexp, accountFilter map[int64]struct{}) []models.Stream {
	snap := idx.current()
	var out []models.Stream
	for _, s := range snap.streamsByID {
		if !pattern.MatchString(s.Name) {
			continue
		}
		if accountFilter != nil {
			if s.M3UAccountID == nil {
				continue
			}
			if _, ok := accountFilter[*s.M3UAccountID]; !ok {
				continue
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetAllAvailableProfilesForStream returns, in priority order, the
// profiles of the stream's account that currently have spare capacity
// (Phase-1 view used by the Probe Runner's first pass).
func (idx *Index) GetAllAvailableProfilesForStream(stream models.Stream) []models.Profile {
	all := idx.GetAllProfilesForStream(stream)
	out := make([]models.Profile, 0, len(all))
	for _, p := range all {
		active := idx.ActiveSessionsForProfile(p.ID)
		if p.Available(active) {
			out = append(out, p)
		}
	}
	return out
}

// GetAllProfilesForStream returns every profile belonging to the
// stream's account, active or not, ordered by priority: default
// profile first, then by declining max_streams, then by id (Phase-2
// universe used once Phase-1 is exhausted).
func (idx *Index) GetAllProfilesForStream(stream models.Stream) []models.Profile {
	if stream.M3UAccountID == nil {
		return nil
	}
	snap := idx.current()
	account, ok := snap.accountsByID[*stream.M3UAccountID]
	if !ok {
		return nil
	}
	out := make([]models.Profile, len(account.Profiles))
	copy(out, account.Profiles)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		if out[i].MaxStreams != out[j].MaxStreams {
			return out[i].MaxStreams > out[j].MaxStreams
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ActiveSessionsForAccount derives the number of live proxy sessions
// currently attributed to account id, solely from the proxy-session
// view via the profile→account map.
func (idx *Index) ActiveSessionsForAccount(accountID int64) int {
	snap := idx.current()
	count := 0
	for _, session := range snap.proxySessions {
		if session.State != models.ProxySessionActive {
			continue
		}
		if acct, ok := snap.profileAccountOf[session.M3UProfileID]; ok && acct == accountID {
			count++
		}
	}
	return count
}

// ActiveSessionsForProfile derives the number of live proxy sessions
// currently using the given profile.
func (idx *Index) ActiveSessionsForProfile(profileID int64) int {
	snap := idx.current()
	count := 0
	for _, session := range snap.proxySessions {
		if session.State == models.ProxySessionActive && session.M3UProfileID == profileID {
			count++
		}
	}
	return count
}

// ApplyProfileURLTransformation rewrites stream.URL using profile's
// search/replace regex pair. If the pattern is empty, fails to
// compile, or does not match, the original URL is returned unchanged.
func (idx *Index) ApplyProfileURLTransformation(stream models.Stream, profile models.Profile) string {
	if profile.SearchPattern == "" {
		return stream.URL
	}
	re, err := idx.compiledPattern(profile.SearchPattern)
	if err != nil {
		logging.Warn().Err(err).Str("pattern", profile.SearchPattern).Msg("profile url transformation pattern invalid")
		return stream.URL
	}
	if !re.MatchString(stream.URL) {
		return stream.URL
	}
	return re.ReplaceAllString(stream.URL, profile.ReplacePattern)
}

func (idx *Index) compiledPattern(pattern string) (*regexp.Regexp, error) {
	idx.patternCacheMu.Lock()
	defer idx.patternCacheMu.Unlock()
	if re, ok := idx.patternCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	idx.patternCache[pattern] = re
	return re, nil
}
