// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prober implements the Probe Runner (spec §4.8): per-channel
// probe cycles that resolve a profile for each candidate stream,
// invoke the media analyzer under the Concurrency Limiter's gate,
// evaluate Phase 1/Phase 2 profile failover, score and rank the
// result, and write the new membership back upstream.
package prober

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streamforge/controller/internal/analyzer"
	"github.com/streamforge/controller/internal/changelog"
	"github.com/streamforge/controller/internal/config"
	"github.com/streamforge/controller/internal/deadstream"
	"github.com/streamforge/controller/internal/limiter"
	"github.com/streamforge/controller/internal/logging"
	"github.com/streamforge/controller/internal/metrics"
	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/probestore"
	"github.com/streamforge/controller/internal/profileconfig"
	"github.com/streamforge/controller/internal/scorer"
	"github.com/streamforge/controller/internal/settings"
	"github.com/streamforge/controller/internal/store"
	"github.com/streamforge/controller/internal/updatetracker"
)

// DataIndex is the subset of the Unified Data Index the Probe Runner
// depends on. *udi.Index satisfies it.
type DataIndex interface {
	GetChannel(id int64) (models.Channel, bool)
	GetStream(id int64) (models.Stream, bool)
	GetAccount(id int64) (models.M3UAccount, bool)
	GetAllAvailableProfilesForStream(stream models.Stream) []models.Profile
	GetAllProfilesForStream(stream models.Stream) []models.Profile
	ApplyProfileURLTransformation(stream models.Stream, profile models.Profile) string
}

// Analyzer is the media-analyzer dependency. *analyzer.Analyzer
// satisfies it; tests supply a fake returning canned results.
type Analyzer interface {
	Probe(ctx context.Context, p analyzer.Params) analyzer.Result
}

// TokenLimiter is the Concurrency Limiter dependency. *limiter.Limiter
// satisfies it.
type TokenLimiter interface {
	TryAcquire(accountID int64, accountCapacity int, profileID *int64, profileCapacity int) (limiter.Token, error)
	Release(token limiter.Token)
}

// Writer persists a channel's new stream membership upstream. Both
// *upstream.Client and *upstream.CircuitBreakerClient satisfy it.
type Writer interface {
	UpdateChannelStreams(ctx context.Context, channelID int64, streamIDs []int64) error
}

// Runner executes one channel's probe cycle (spec §4.8 steps 1-10).
type Runner struct {
	udi         DataIndex
	analyzer    Analyzer
	limiter     TokenLimiter
	probes      *probestore.Store
	dead        *deadstream.Tracker
	updates     *updatetracker.Tracker
	log         *changelog.Log
	settings    *settings.Store
	profiles    *profileconfig.Store
	writer      Writer
	store       *store.Store
	analyzerCfg config.AnalyzerConfig
}

// NewRunner wires the Probe Runner's dependencies.
func NewRunner(
	udi DataIndex,
	an Analyzer,
	lim TokenLimiter,
	probes *probestore.Store,
	dead *deadstream.Tracker,
	updates *updatetracker.Tracker,
	log *changelog.Log,
	settingsStore *settings.Store,
	profiles *profileconfig.Store,
	writer Writer,
	storeBundle *store.Store,
	analyzerCfg config.AnalyzerConfig,
) *Runner {
	return &Runner{
		udi:         udi,
		analyzer:    an,
		limiter:     lim,
		probes:      probes,
		dead:        dead,
		updates:     updates,
		log:         log,
		settings:    settingsStore,
		profiles:    profiles,
		writer:      writer,
		store:       storeBundle,
		analyzerCfg: analyzerCfg,
	}
}

// udiMembership adapts DataIndex to settings.GroupMembership using
// each channel's own channel_group_id, so Effective() can fall
// through to a group override without a separate membership index.
type udiMembership struct{ udi DataIndex }

func (m udiMembership) GroupIDFor(channelID int64) (int64, bool) {
	ch, ok := m.udi.GetChannel(channelID)
	if !ok || ch.ChannelGroupID == nil {
		return 0, false
	}
	return *ch.ChannelGroupID, true
}

// NonEmptyGroupIDs is unused by Effective; bulk group edits go
// through the HTTP Control Surface's own membership index instead.
func (m udiMembership) NonEmptyGroupIDs() []int64 { return nil }

// ProcessChannel runs one full probe cycle for channelID (spec §4.8).
// queueForceCheck is the force flag carried by the queue entry that
// triggered this cycle; it is OR'd with any pending
// updatetracker.ForceCheckRequested flag.
func (r *Runner) ProcessChannel(ctx context.Context, channelID int64, queueForceCheck bool) error {
	eff := r.settings.Effective(channelID, udiMembership{r.udi})
	if eff.CheckingMode == models.ModeDisabled {
		logging.Info().Int64("channel_id", channelID).Msg("channel checking disabled, dropping queue entry")
		return nil
	}

	channel, ok := r.udi.GetChannel(channelID)
	if !ok {
		return fmt.Errorf("prober: channel %d not found in index", channelID)
	}

	wasForced, err := r.updates.ConsumeForceCheck(channelID)
	if err != nil {
		return fmt.Errorf("prober: consume force-check for channel %d: %w", channelID, err)
	}
	force := queueForceCheck || wasForced

	cfg := r.store.StreamChecker.Get()
	now := time.Now()
	immunityWindow := time.Duration(cfg.ImmunityWindowHours) * time.Hour

	results := make(map[int64]models.ProbeResult, len(channel.Streams))
	var toProbe []models.Stream
	for _, sid := range channel.Streams {
		stream, ok := r.udi.GetStream(sid)
		if !ok {
			continue
		}
		if !force && r.probes.Immune(sid, immunityWindow, now) {
			if cached, ok := r.probes.Get(sid); ok {
				results[sid] = cached
				continue
			}
		}
		toProbe = append(toProbe, stream)
	}

	r.probeAll(ctx, toProbe, cfg, now, results)

	scored := r.scoreAndTagDead(results, eff.QualityPreference, cfg)
	scored = Rank(scored, cfg)

	streamIDs := make([]int64, len(scored))
	for i, s := range scored {
		streamIDs[i] = s.StreamID
	}

	if len(streamIDs) == 0 && len(channel.Streams) == 0 {
		return nil
	}

	if err := r.writer.UpdateChannelStreams(ctx, channelID, streamIDs); err != nil {
		return fmt.Errorf("prober: write back channel %d: %w", channelID, err)
	}

	if err := r.updates.RecordUpdate(channelID, len(streamIDs), now); err != nil {
		logging.Warn().Err(err).Int64("channel_id", channelID).Msg("failed to record update tracker entry")
	}
	if err := r.log.Append("probe", &channelID, fmt.Sprintf("probed channel %d: %d streams retained", channelID, len(streamIDs)), now); err != nil {
		logging.Warn().Err(err).Int64("channel_id", channelID).Msg("failed to append changelog entry")
	}
	return nil
}

// probeAll submits every stream in toProbe to a pool bounded by
// cfg.GlobalConcurrentLimit, writing each outcome into results and the
// probe-result cache as it completes.
func (r *Runner) probeAll(ctx context.Context, toProbe []models.Stream, cfg store.StreamCheckerConfig, now time.Time, results map[int64]models.ProbeResult) {
	if len(toProbe) == 0 {
		return
	}

	limit := cfg.GlobalConcurrentLimit
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, stream := range toProbe {
		stream := stream
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, usedProfileID := r.probeStream(ctx, stream, cfg)
			pr := toProbeResult(result, usedProfileID, now)

			mu.Lock()
			results[stream.ID] = pr
			mu.Unlock()

			if err := r.probes.Set(stream.ID, pr); err != nil {
				logging.Warn().Err(err).Int64("stream_id", stream.ID).Msg("failed to persist probe result")
			}
			metrics.ProbeResultsTotal.WithLabelValues(string(pr.Status)).Inc()
		}()
	}
	wg.Wait()
}

// scoreAndTagDead applies dead-stream tracking/revival (step 4) and
// computes each stream's score (step 5).
func (r *Runner) scoreAndTagDead(results map[int64]models.ProbeResult, pref models.QualityPreference, cfg store.StreamCheckerConfig) []models.ScoredStream {
	scored := make([]models.ScoredStream, 0, len(results))
	for sid, pr := range results {
		stream, ok := r.udi.GetStream(sid)
		if !ok {
			continue
		}

		if pr.IsDead() {
			if err := r.dead.MarkDead(sid, deadReason(pr), pr.LastCheckedAt); err != nil {
				logging.Warn().Err(err).Int64("stream_id", sid).Msg("failed to record dead stream")
			}
		} else if pr.Status == models.ProbeStatusOK && stream.HasDeadPrefix() {
			if err := r.dead.Revive(sid); err != nil {
				logging.Warn().Err(err).Int64("stream_id", sid).Msg("failed to revive stream")
			}
		}

		ss, ok := ScoreCached(r.udi, sid, pr, pref, cfg.QualityWeights)
		if !ok {
			continue
		}
		scored = append(scored, ss)
	}
	return scored
}

// ScoreCached computes one stream's ScoredStream from an already-known
// ProbeResult, without touching the dead-stream tracker. Both a live
// probe cycle (via scoreAndTagDead, which tags dead/revived streams
// first) and rescore_resort_all (which only recomputes scores from
// cached results) share this.
func ScoreCached(udi DataIndex, streamID int64, pr models.ProbeResult, pref models.QualityPreference, weights store.QualityWeights) (models.ScoredStream, bool) {
	stream, ok := udi.GetStream(streamID)
	if !ok {
		return models.ScoredStream{}, false
	}

	var accountID int64
	var accountName string
	var priority int
	if stream.M3UAccountID != nil {
		accountID = *stream.M3UAccountID
		if acc, ok := udi.GetAccount(accountID); ok {
			accountName = acc.Name
			priority = acc.Priority
		}
	}

	score := scorer.Score(scorer.Input{
		Probe:             pr,
		QualityPreference: pref,
		AccountPriority:   priority,
		Weights:           scorer.Weights(weights),
		Normalization:     scorer.DefaultNormalization(),
	})

	return models.ScoredStream{
		StreamID:      streamID,
		AccountID:     accountID,
		AccountName:   accountName,
		Priority:      priority,
		Score:         score,
		UsedProfileID: pr.UsedProfileID,
	}, true
}

// deadReason names which dead condition (spec §4.8 step 4) applied.
func deadReason(pr models.ProbeResult) string {
	if pr.ResolutionW == 0 || pr.ResolutionH == 0 {
		return "zero resolution"
	}
	return "zero bitrate"
}

// toProbeResult converts one analyzer invocation into the persisted
// ProbeResult shape.
func toProbeResult(r analyzer.Result, usedProfileID *int64, now time.Time) models.ProbeResult {
	pr := models.ProbeResult{
		Status:        models.ProbeStatus(r.Status),
		ResolutionW:   r.Width,
		ResolutionH:   r.Height,
		FPS:           r.FPS,
		VideoCodec:    r.VideoCodec,
		AudioCodec:    r.AudioCodec,
		BitrateKbps:   r.BitrateKbps,
		LastCheckedAt: now,
		UsedProfileID: usedProfileID,
	}
	if r.Error != "" {
		errMsg := r.Error
		pr.ErrorMessage = &errMsg
	}
	return pr
}
