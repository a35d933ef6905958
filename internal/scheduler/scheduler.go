// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scheduler runs the automation engine's top-level loop:
// periodic playlist refresh, a cron-scheduled global action, and
// manual HTTP-triggered operations (spec §4.9).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamforge/controller/internal/changelog"
	"github.com/streamforge/controller/internal/deadstream"
	"github.com/streamforge/controller/internal/logging"
	matcherpkg "github.com/streamforge/controller/internal/matcher"
	"github.com/streamforge/controller/internal/metrics"
	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/probestore"
	"github.com/streamforge/controller/internal/prober"
	"github.com/streamforge/controller/internal/queue"
	"github.com/streamforge/controller/internal/regexstore"
	"github.com/streamforge/controller/internal/settings"
	"github.com/streamforge/controller/internal/store"
	"github.com/streamforge/controller/internal/updatetracker"
	"github.com/streamforge/controller/internal/upstream"
)

// Manual-trigger and auto-match queue priorities. Higher runs first
// (spec §4.5); a cron global action's force_check sweep outranks a
// manual operator trigger, which in turn outranks a routine
// matching-changed auto-enqueue.
const (
	priorityAutoMatch    = 1
	priorityManual       = 5
	priorityGlobalAction = 10
)

// metricsInterval is how often the Scheduler refreshes the queue/
// dead-stream/stream-checking-mode gauges.
const metricsInterval = 5 * time.Second

// Index is the subset of the Unified Data Index the Scheduler depends
// on. *udi.Index satisfies it; its method set is a superset of
// prober.DataIndex so a Scheduler can hand its own idx straight to
// prober.ScoreCached when rescoring from cache.
type Index interface {
	GetChannel(id int64) (models.Channel, bool)
	GetStream(id int64) (models.Stream, bool)
	GetAccount(id int64) (models.M3UAccount, bool)
	GetAllAvailableProfilesForStream(stream models.Stream) []models.Profile
	GetAllProfilesForStream(stream models.Stream) []models.Profile
	ApplyProfileURLTransformation(stream models.Stream, profile models.Profile) string
	ListChannels() []models.Channel
	ListStreams() []models.Stream
	ListAccounts() []models.M3UAccount
	RefreshStreams(ctx context.Context) error
	RefreshChannels(ctx context.Context) error
	RefreshM3UAccounts(ctx context.Context) error
}

// Upstream is the subset of the Upstream Client the Scheduler calls
// directly (everything else goes through Index's Refresh* methods).
// Both *upstream.Client and *upstream.CircuitBreakerClient satisfy it.
type Upstream interface {
	RefreshM3UAccount(ctx context.Context, id int64) error
}

// Writer persists a channel's new stream membership upstream.
type Writer interface {
	UpdateChannelStreams(ctx context.Context, channelID int64, streamIDs []int64) error
}

// Scheduler is the automation engine's top-level loop (spec §4.9). It
// implements suture.Service (Serve(ctx) error) so the supervisor
// tree's engine layer owns its restart-on-panic lifecycle.
type Scheduler struct {
	idx        Index
	upstream   Upstream
	writer     Writer
	store      *store.Store
	regex      *regexstore.Store
	settings   *settings.Store
	queue      *queue.Queue
	updates    *updatetracker.Tracker
	dead       *deadstream.Tracker
	probes     *probestore.Store
	log        *changelog.Log

	running                 atomic.Bool
	globalActionInProgress  atomic.Bool

	mu                 sync.Mutex
	lastPlaylistUpdate time.Time
	lastGlobalCheck    time.Time
}

// New wires the Scheduler's dependencies.
func New(
	idx Index,
	upstream Upstream,
	writer Writer,
	storeBundle *store.Store,
	regex *regexstore.Store,
	settingsStore *settings.Store,
	q *queue.Queue,
	updates *updatetracker.Tracker,
	dead *deadstream.Tracker,
	probes *probestore.Store,
	log *changelog.Log,
) *Scheduler {
	return &Scheduler{
		idx:      idx,
		upstream: upstream,
		writer:   writer,
		store:    storeBundle,
		regex:    regex,
		settings: settingsStore,
		queue:    q,
		updates:  updates,
		dead:     dead,
		probes:   probes,
		log:      log,
	}
}

// udiMembership adapts Index to settings.GroupMembership via each
// channel's own channel_group_id — the same adapter shape
// internal/prober uses, duplicated here because the two packages
// depend on distinct (if overlapping) Index interfaces.
type udiMembership struct{ idx Index }

func (m udiMembership) GroupIDFor(channelID int64) (int64, bool) {
	ch, ok := m.idx.GetChannel(channelID)
	if !ok || ch.ChannelGroupID == nil {
		return 0, false
	}
	return *ch.ChannelGroupID, true
}

func (m udiMembership) NonEmptyGroupIDs() []int64 { return nil }

// Serve runs the playlist tick loop, the cron-scheduled global action
// loop, and the metrics-refresh loop until ctx is cancelled (spec §5
// "orderly shutdown... scheduler exits").
func (s *Scheduler) Serve(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.playlistLoop(ctx) }()
	go func() { defer wg.Done(); s.globalActionLoop(ctx) }()
	go func() { defer wg.Done(); s.metricsLoop(ctx) }()
	wg.Wait()

	return ctx.Err()
}

// playlistLoop drives the periodic playlist tick on either a fixed
// interval or a cron expression, whichever the current automation
// config names (spec §4.9).
func (s *Scheduler) playlistLoop(ctx context.Context) {
	for {
		cfg := s.store.Automation.Get()
		wait := s.nextPlaylistTickDelay(cfg, time.Now())

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if ctx.Err() != nil {
			return
		}
		s.PlaylistTick(ctx)
	}
}

// nextPlaylistTickDelay resolves how long to wait before the next
// playlist tick: a cron expression takes priority over the fixed
// interval when both are set.
func (s *Scheduler) nextPlaylistTickDelay(cfg store.AutomationConfig, now time.Time) time.Duration {
	if cfg.CronExpression != "" {
		next, err := CalculateNextRun(cfg.CronExpression, now, "")
		if err == nil {
			return next.Sub(now)
		}
		logging.Warn().Err(err).Str("cron", cfg.CronExpression).Msg("invalid playlist cron expression, falling back to interval")
	}

	minutes := cfg.PlaylistUpdateIntervalMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// globalActionLoop drives the cron-scheduled global action (spec
// §4.9).
func (s *Scheduler) globalActionLoop(ctx context.Context) {
	for {
		cfg := s.store.Automation.Get()
		now := time.Now()
		var wait time.Duration
		if cfg.GlobalActionCronExpression == "" {
			wait = time.Hour
		} else {
			next, err := CalculateNextRun(cfg.GlobalActionCronExpression, now, "")
			if err != nil {
				logging.Warn().Err(err).Str("cron", cfg.GlobalActionCronExpression).Msg("invalid global action cron expression")
				wait = time.Hour
			} else {
				wait = next.Sub(now)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if ctx.Err() != nil {
			return
		}
		if err := s.TriggerGlobalAction(ctx); err != nil {
			logging.Warn().Err(err).Msg("scheduled global action did not run")
		}
	}
}

// metricsLoop periodically republishes queue, dead-stream, and
// stream-checking-mode gauges so they reflect current state between
// the events that change them.
func (s *Scheduler) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshGauges()
		}
	}
}

func (s *Scheduler) refreshGauges() {
	size, inProgress, _, _ := s.queue.Stats()
	metrics.QueueSize.Set(float64(size))
	metrics.QueueInProgress.Set(float64(inProgress))
	metrics.DeadStreamsTotal.Set(float64(s.dead.Count()))
	if s.StreamCheckingMode() {
		metrics.StreamCheckingMode.Set(1)
	} else {
		metrics.StreamCheckingMode.Set(0)
	}
}

// PlaylistTick runs one playlist-refresh cycle (spec §4.9): refresh
// M3U via upstream, refresh the UDI, then matching and auto-enqueue if
// enabled. A global action in progress blocks a tick from running at
// all ("exclusive lock... blocks normal auto ticks until done").
func (s *Scheduler) PlaylistTick(ctx context.Context) {
	if s.globalActionInProgress.Load() {
		logging.Debug().Msg("skipping playlist tick: global action in progress")
		return
	}

	if err := s.refreshAllPlaylists(ctx); err != nil {
		logging.Warn().Err(err).Msg("playlist refresh failed, skipping this tick")
		_ = s.log.Append("playlist_tick", nil, fmt.Sprintf("playlist refresh failed: %v", err), time.Now())
		return
	}

	s.mu.Lock()
	s.lastPlaylistUpdate = time.Now()
	s.mu.Unlock()

	cfg := s.store.Automation.Get()
	if !cfg.AutoStreamMatching {
		return
	}

	changed, err := s.matchAllChannels(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("matching pass failed")
		return
	}

	if !cfg.AutoQualityChecking {
		return
	}
	now := time.Now()
	for _, channelID := range changed {
		s.enqueueIfEligible(channelID, false, priorityAutoMatch, now)
	}
}

// refreshAllPlaylists asks upstream to refresh every known m3u
// account, then refreshes the UDI's own account/stream/channel
// indexes so the new playlist content is visible (spec §4.9, §6).
func (s *Scheduler) refreshAllPlaylists(ctx context.Context) error {
	for _, acc := range s.idx.ListAccounts() {
		if err := s.upstream.RefreshM3UAccount(ctx, acc.ID); err != nil {
			return fmt.Errorf("refresh m3u account %d: %w", acc.ID, err)
		}
	}
	return s.refreshUDI(ctx)
}

func (s *Scheduler) refreshUDI(ctx context.Context) error {
	if err := s.idx.RefreshM3UAccounts(ctx); err != nil {
		return err
	}
	if err := s.idx.RefreshStreams(ctx); err != nil {
		return err
	}
	return s.idx.RefreshChannels(ctx)
}

// enqueueIfEligible enqueues channelID unless it was updated within
// the immunity window and force is not set — a routine matching-
// changed auto-enqueue should not re-probe a channel that was just
// checked, but an explicit force request always goes through.
func (s *Scheduler) enqueueIfEligible(channelID int64, force bool, priority int, now time.Time) {
	if !force {
		cfg := s.store.StreamChecker.Get()
		immunity := time.Duration(cfg.ImmunityWindowHours) * time.Hour
		state := s.updates.Get(channelID)
		if !state.LastUpdatedAt.IsZero() && now.Sub(state.LastUpdatedAt) < immunity {
			return
		}
	}
	s.queue.Enqueue(channelID, priority, force, now)
}

// matchAllChannels runs the Matching Engine over every channel whose
// effective matching mode is enabled, writing back and logging any
// channel whose membership changed (spec §4.3, §4.9). It returns the
// ids of changed channels.
func (s *Scheduler) matchAllChannels(ctx context.Context) ([]int64, error) {
	cfg := s.store.Automation.Get()
	allStreams := s.idx.ListStreams()
	membership := udiMembership{s.idx}

	var changed []int64
	for _, ch := range s.idx.ListChannels() {
		eff := s.settings.Effective(ch.ID, membership)
		if eff.MatchingMode != models.ModeEnabled {
			continue
		}

		result := s.matchChannel(ch, cfg, allStreams)
		if result.Unchanged {
			continue
		}

		if err := s.writer.UpdateChannelStreams(ctx, result.ChannelID, result.NewStreams); err != nil {
			logging.Warn().Err(err).Int64("channel_id", ch.ID).Msg("failed to write back matched streams")
			continue
		}
		if err := s.log.Append("match", &ch.ID, fmt.Sprintf("channel %d matched: +%d -%d", ch.ID, len(result.Added), len(result.Removed)), time.Now()); err != nil {
			logging.Warn().Err(err).Int64("channel_id", ch.ID).Msg("failed to append changelog entry")
		}
		changed = append(changed, ch.ID)
	}
	return changed, nil
}

// matchChannel runs one channel through the Matching Engine, adapting
// the Regex Pattern Store's compiler to matcher.Matcher.
func (s *Scheduler) matchChannel(ch models.Channel, cfg store.AutomationConfig, allStreams []models.Stream) matcherpkg.Result {
	return matcherpkg.Match(matcherpkg.Options{
		ChannelID:        ch.ID,
		ChannelName:      ch.Name,
		CurrentStreamIDs: ch.Streams,
		Patterns:         s.regex.Patterns(ch.ID),
		Compile: func(pattern, channelName string) (matcherpkg.Matcher, error) {
			re, err := s.regex.Compile(pattern, channelName)
			if err != nil {
				return nil, err
			}
			return re, nil
		},
		AllStreams:              allStreams,
		GloballyEnabledAccounts: nil,
		RemoveNonMatching:       cfg.RemoveNonMatchingStreams,
	})
}

// TriggerGlobalAction runs the cron-scheduled (or manually triggered)
// global action (spec §4.9): refresh UDI, clear dead streams, refresh
// all playlists, match every channel, then force-check every channel.
// It acquires the exclusive lock that blocks normal playlist ticks for
// the duration of the run; a second call while one is in flight
// returns an error instead of running concurrently.
func (s *Scheduler) TriggerGlobalAction(ctx context.Context) error {
	if !s.globalActionInProgress.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: global action already in progress", upstream.ErrConflict)
	}
	defer s.globalActionInProgress.Store(false)

	logging.Info().Msg("starting global action")

	if err := s.refreshUDI(ctx); err != nil {
		return fmt.Errorf("global action: refresh udi: %w", err)
	}
	if err := s.dead.ClearAll(); err != nil {
		return fmt.Errorf("global action: clear dead streams: %w", err)
	}
	if err := s.refreshAllPlaylists(ctx); err != nil {
		return fmt.Errorf("global action: refresh playlists: %w", err)
	}
	if _, err := s.matchAllChannels(ctx); err != nil {
		return fmt.Errorf("global action: match channels: %w", err)
	}

	now := time.Now()
	for _, ch := range s.idx.ListChannels() {
		s.queue.Enqueue(ch.ID, priorityGlobalAction, true, now)
	}

	s.mu.Lock()
	s.lastGlobalCheck = now
	s.mu.Unlock()

	metrics.GlobalActionsTotal.Inc()
	_ = s.log.Append("global_action", nil, "global action completed", now)
	logging.Info().Msg("global action completed")
	return nil
}

// RescoreResortAll recomputes every channel's scores from cached probe
// results (no re-probing), re-sorts, re-diversifies, and re-applies
// account limits (spec §4.9, §6 POST /stream-checker/rescore-resort).
// Channels with no cached probe results at all are skipped.
func (s *Scheduler) RescoreResortAll(ctx context.Context) error {
	cfg := s.store.StreamChecker.Get()
	membership := udiMembership{s.idx}
	now := time.Now()

	for _, ch := range s.idx.ListChannels() {
		results := make(map[int64]models.ProbeResult, len(ch.Streams))
		for _, sid := range ch.Streams {
			if pr, ok := s.probes.Get(sid); ok {
				results[sid] = pr
			}
		}
		if len(results) == 0 {
			continue
		}

		eff := s.settings.Effective(ch.ID, membership)
		scored := make([]models.ScoredStream, 0, len(results))
		for sid, pr := range results {
			ss, ok := prober.ScoreCached(s.idx, sid, pr, eff.QualityPreference, cfg.QualityWeights)
			if !ok {
				continue
			}
			scored = append(scored, ss)
		}
		scored = prober.Rank(scored, cfg)

		streamIDs := make([]int64, len(scored))
		for i, sc := range scored {
			streamIDs[i] = sc.StreamID
		}

		if err := s.writer.UpdateChannelStreams(ctx, ch.ID, streamIDs); err != nil {
			logging.Warn().Err(err).Int64("channel_id", ch.ID).Msg("failed to write back rescored streams")
			continue
		}
		if err := s.updates.RecordUpdate(ch.ID, len(streamIDs), now); err != nil {
			logging.Warn().Err(err).Int64("channel_id", ch.ID).Msg("failed to record update tracker entry")
		}
		_ = s.log.Append("rescore", &ch.ID, fmt.Sprintf("channel %d rescored: %d streams retained", ch.ID, len(streamIDs)), now)
	}
	return nil
}

// ApplyAccountLimitsToExistingChannels trims every channel's current
// stream order against the current account stream limits without
// re-scoring or re-sorting it (spec §4.9, §6 POST
// /stream-checker/apply-account-limits) — distinct from
// RescoreResortAll, which recomputes the full ranking.
func (s *Scheduler) ApplyAccountLimitsToExistingChannels(ctx context.Context) error {
	limits := s.store.StreamChecker.Get().AccountStreamLimits
	now := time.Now()

	for _, ch := range s.idx.ListChannels() {
		if len(ch.Streams) == 0 {
			continue
		}

		ordered := make([]models.ScoredStream, 0, len(ch.Streams))
		for _, sid := range ch.Streams {
			stream, ok := s.idx.GetStream(sid)
			if !ok {
				continue
			}
			var accountID int64
			if stream.M3UAccountID != nil {
				accountID = *stream.M3UAccountID
			}
			ordered = append(ordered, models.ScoredStream{StreamID: sid, AccountID: accountID})
		}

		trimmed := prober.ApplyAccountLimits(ordered, limits)
		if len(trimmed) == len(ordered) {
			continue
		}

		streamIDs := make([]int64, len(trimmed))
		for i, sc := range trimmed {
			streamIDs[i] = sc.StreamID
		}

		if err := s.writer.UpdateChannelStreams(ctx, ch.ID, streamIDs); err != nil {
			logging.Warn().Err(err).Int64("channel_id", ch.ID).Msg("failed to write back account-limit trim")
			continue
		}
		if err := s.updates.RecordUpdate(ch.ID, len(streamIDs), now); err != nil {
			logging.Warn().Err(err).Int64("channel_id", ch.ID).Msg("failed to record update tracker entry")
		}
		_ = s.log.Append("apply_account_limits", &ch.ID, fmt.Sprintf("channel %d trimmed to %d streams by account limit", ch.ID, len(streamIDs)), now)
	}
	return nil
}

// RefreshPlaylist is the manual POST /refresh-playlist trigger: the
// same playlist/UDI refresh PlaylistTick runs, without the matching
// and auto-enqueue steps gated by automation config.
func (s *Scheduler) RefreshPlaylist(ctx context.Context) error {
	if err := s.refreshAllPlaylists(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastPlaylistUpdate = time.Now()
	s.mu.Unlock()
	return nil
}

// DiscoverStreams is the manual POST /discover-streams trigger:
// matching only, force-checking every channel whose membership
// changed regardless of auto_quality_checking.
func (s *Scheduler) DiscoverStreams(ctx context.Context) ([]int64, error) {
	changed, err := s.matchAllChannels(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, channelID := range changed {
		s.queue.Enqueue(channelID, priorityManual, true, now)
	}
	return changed, nil
}

// TestStreamsWithoutStats is the manual POST
// /stream-checker/test-streams-without-stats trigger: queues every
// channel that has at least one stream with no cached ProbeResult.
func (s *Scheduler) TestStreamsWithoutStats() []int64 {
	now := time.Now()
	var enqueued []int64
	for _, ch := range s.idx.ListChannels() {
		missing := false
		for _, sid := range ch.Streams {
			if _, ok := s.probes.Get(sid); !ok {
				missing = true
				break
			}
		}
		if !missing {
			continue
		}
		s.queue.Enqueue(ch.ID, priorityManual, true, now)
		enqueued = append(enqueued, ch.ID)
	}
	return enqueued
}

// CheckSingleChannel is the manual POST
// /stream-checker/check-single-channel trigger.
func (s *Scheduler) CheckSingleChannel(channelID int64, force bool) {
	s.queue.Enqueue(channelID, priorityManual, force, time.Now())
}

// Status is the snapshot GET /status publishes (spec §6).
type Status struct {
	AutomationRunning      bool
	StreamCheckerRunning   bool
	GlobalActionInProgress bool
	StreamCheckingMode     bool
	QueueSize              int
	QueueInProgress        int
	QueueCompleted         uint64
	QueueFailed            uint64
	LastPlaylistUpdate     time.Time
	LastGlobalCheck        time.Time
}

// Status reports the Scheduler's current state for GET /status. The
// Scheduler and the Probe Runner worker pool run as siblings under the
// same supervisor tree, so AutomationRunning and StreamCheckerRunning
// both reflect whether this engine process's top-level loop is alive.
func (s *Scheduler) Status() Status {
	size, inProgress, completed, failed := s.queue.Stats()
	running := s.running.Load()

	s.mu.Lock()
	lastPlaylist := s.lastPlaylistUpdate
	lastGlobal := s.lastGlobalCheck
	s.mu.Unlock()

	return Status{
		AutomationRunning:      running,
		StreamCheckerRunning:   running,
		GlobalActionInProgress: s.globalActionInProgress.Load(),
		StreamCheckingMode:     s.StreamCheckingMode(),
		QueueSize:              size,
		QueueInProgress:        inProgress,
		QueueCompleted:         completed,
		QueueFailed:            failed,
		LastPlaylistUpdate:     lastPlaylist,
		LastGlobalCheck:        lastGlobal,
	}
}

// StreamCheckingMode reports the derived flag the HTTP surface uses to
// gate potentially-conflicting mutations (spec §4.9): true iff a
// global action is running, or the queue has anything queued or
// in-progress.
func (s *Scheduler) StreamCheckingMode() bool {
	if s.globalActionInProgress.Load() {
		return true
	}
	size, inProgress, _, _ := s.queue.Stats()
	return size > 0 || inProgress > 0
}
