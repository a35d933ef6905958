// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package prober

import (
	"context"
	"time"

	"github.com/streamforge/controller/internal/analyzer"
	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/store"
)

// probeStream resolves a profile and invokes the media analyzer for
// one stream, following Phase 1 (free profiles, tried once) then,
// when exhausted and try_full_profiles is set, Phase 2 intelligent
// polling (spec §4.8 step 2).
func (r *Runner) probeStream(ctx context.Context, stream models.Stream, cfg store.StreamCheckerConfig) (analyzer.Result, *int64) {
	tried := make(map[int64]bool)

	for _, p := range r.profiles.FilterAvailable(r.udi.GetAllAvailableProfilesForStream(stream)) {
		tried[p.ID] = true
		if result, ok := r.tryProfile(ctx, stream, p); ok {
			id := p.ID
			return result, &id
		}
	}

	if !cfg.TryFullProfiles {
		return analyzer.Result{Status: analyzer.StatusError, Error: "no available profile accepted a session"}, nil
	}

	return r.phase2(ctx, stream, cfg, tried)
}

// phase2 polls the stream's full profile universe until every profile
// has been tried or phase2_max_wait elapses, testing each profile the
// instant it reports spare capacity.
func (r *Runner) phase2(ctx context.Context, stream models.Stream, cfg store.StreamCheckerConfig, tried map[int64]bool) (analyzer.Result, *int64) {
	remaining := untried(r.profiles.FilterAvailable(r.udi.GetAllProfilesForStream(stream)), tried)
	if len(remaining) == 0 {
		return analyzer.Result{Status: analyzer.StatusError, Error: "no untried profile in phase 2"}, nil
	}

	pollInterval := time.Duration(cfg.Phase2PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	deadline := time.Now().Add(time.Duration(cfg.Phase2MaxWaitSeconds) * time.Second)

	last := analyzer.Result{Status: analyzer.StatusError, Error: "phase 2 exhausted without an OK result"}
	for len(remaining) > 0 && time.Now().Before(deadline) {
		availableNow := make(map[int64]bool)
		for _, p := range r.profiles.FilterAvailable(r.udi.GetAllAvailableProfilesForStream(stream)) {
			availableNow[p.ID] = true
		}

		var stillRemaining []models.Profile
		progressed := false
		for _, p := range remaining {
			if !availableNow[p.ID] {
				stillRemaining = append(stillRemaining, p)
				continue
			}
			progressed = true
			tried[p.ID] = true
			if result, ok := r.tryProfile(ctx, stream, p); ok {
				id := p.ID
				return result, &id
			} else {
				last = result
			}
		}
		remaining = stillRemaining

		if len(remaining) == 0 {
			break
		}
		if !progressed {
			select {
			case <-ctx.Done():
				return analyzer.Result{Status: analyzer.StatusTimeout, Error: ctx.Err().Error()}, nil
			case <-time.After(pollInterval):
			}
		}
	}
	return last, nil
}

// tryProfile try-acquires profile p's token (and its account's), runs
// the analyzer if acquired, and releases the token unconditionally.
func (r *Runner) tryProfile(ctx context.Context, stream models.Stream, p models.Profile) (analyzer.Result, bool) {
	account, _ := r.udi.GetAccount(p.AccountID)

	pid := p.ID
	token, err := r.limiter.TryAcquire(p.AccountID, account.MaxStreams, &pid, p.MaxStreams)
	if err != nil {
		return analyzer.Result{}, false
	}
	defer r.limiter.Release(token)

	url := r.udi.ApplyProfileURLTransformation(stream, p)
	result := r.analyzer.Probe(ctx, analyzer.Params{
		URL:               url,
		DurationSeconds:   r.analyzerCfg.DurationSeconds,
		TimeoutSeconds:    r.analyzerCfg.TimeoutSeconds,
		Retries:           r.analyzerCfg.Retries,
		RetryDelaySeconds: r.analyzerCfg.RetryDelaySeconds,
		UserAgent:         r.analyzerCfg.UserAgent,
		Proxy:             account.Proxy,
	})
	return result, result.Status == analyzer.StatusOK
}

// untried returns the subset of profiles not yet marked tried.
func untried(profiles []models.Profile, tried map[int64]bool) []models.Profile {
	out := make([]models.Profile, 0, len(profiles))
	for _, p := range profiles {
		if !tried[p.ID] {
			out = append(out, p)
		}
	}
	return out
}
