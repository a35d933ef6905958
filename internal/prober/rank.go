// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package prober

import (
	"sort"

	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/store"
)

// sortScoredDescending orders scored streams highest-score-first
// (spec §4.8 step 6).
func sortScoredDescending(streams []models.ScoredStream) {
	sort.SliceStable(streams, func(i, j int) bool { return streams[i].Score > streams[j].Score })
}

// diversify groups streams by m3u account and interleaves the groups
// round-by-round, ordering the groups themselves either alphabetically
// by account name (round_robin) or by account priority descending
// (priority_weighted); off leaves the input order untouched (spec
// §4.8 step 7).
func diversify(mode store.ProviderDiversificationMode, streams []models.ScoredStream) []models.ScoredStream {
	if mode == store.DiversificationOff || len(streams) == 0 {
		return streams
	}

	groups := make(map[int64][]models.ScoredStream)
	var order []int64
	for _, s := range streams {
		if _, ok := groups[s.AccountID]; !ok {
			order = append(order, s.AccountID)
		}
		groups[s.AccountID] = append(groups[s.AccountID], s)
	}

	switch mode {
	case store.DiversificationRoundRobin:
		sort.Slice(order, func(i, j int) bool {
			return groups[order[i]][0].AccountName < groups[order[j]][0].AccountName
		})
	case store.DiversificationPriorityWeighted:
		sort.Slice(order, func(i, j int) bool {
			return groups[order[i]][0].Priority > groups[order[j]][0].Priority
		})
	}

	out := make([]models.ScoredStream, 0, len(streams))
	for {
		progressed := false
		for _, acc := range order {
			g := groups[acc]
			if len(g) == 0 {
				continue
			}
			out = append(out, g[0])
			groups[acc] = g[1:]
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}

// applyAccountLimits drops tail entries, in the current ordering,
// once an account's retained count reaches its effective limit (spec
// §4.8 step 8). Must run after diversify/sort so "tail" means
// "lowest-priority position in the already-decided order".
func applyAccountLimits(streams []models.ScoredStream, limits store.AccountStreamLimits) []models.ScoredStream {
	counts := make(map[int64]int)
	out := make([]models.ScoredStream, 0, len(streams))
	for _, s := range streams {
		limit := limits.EffectiveLimit(s.AccountID)
		if limit > 0 && counts[s.AccountID] >= limit {
			continue
		}
		counts[s.AccountID]++
		out = append(out, s)
	}
	return out
}

// ApplyAccountLimits exposes applyAccountLimits for
// apply_account_limits_to_existing_channels (spec §6), which trims a
// channel's already-ordered stream list against the current account
// limits without re-scoring or re-sorting it.
func ApplyAccountLimits(streams []models.ScoredStream, limits store.AccountStreamLimits) []models.ScoredStream {
	return applyAccountLimits(streams, limits)
}

// Rank applies the full post-score ranking pipeline (sort, diversify,
// account-limit trim, zero-score prune — spec §4.8 steps 6-9). A live
// probe cycle runs it once per channel after scoreAndTagDead;
// rescore_resort_all reruns it over cached scores with no re-probing.
func Rank(streams []models.ScoredStream, cfg store.StreamCheckerConfig) []models.ScoredStream {
	sortScoredDescending(streams)
	streams = diversify(cfg.ProviderDiversification, streams)
	streams = applyAccountLimits(streams, cfg.AccountStreamLimits)
	streams = removeZeroScore(streams)
	return streams
}

// removeZeroScore drops dead (score 0) entries (spec §4.8 step 9).
func removeZeroScore(streams []models.ScoredStream) []models.ScoredStream {
	out := make([]models.ScoredStream, 0, len(streams))
	for _, s := range streams {
		if s.Score > 0 {
			out = append(out, s)
		}
	}
	return out
}
