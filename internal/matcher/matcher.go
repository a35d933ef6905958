// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package matcher implements the Matching Engine (spec §4.3): for
// each channel, compute the candidate stream set from its enabled
// regex patterns, reconcile it against current membership, and
// produce the upstream write-back order.
package matcher

import (
	"github.com/streamforge/controller/internal/models"
)

// Matcher is the minimal surface matcher needs from a compiled
// pattern — satisfied directly by *regexp.Regexp.
type Matcher interface {
	MatchString(s string) bool
}

// Result is the outcome of matching a single channel: the new
// membership to write back (the current ids if unchanged) plus the added/removed
// diff for changelog purposes.
type Result struct {
	ChannelID    int64
	NewStreams   []int64
	Added        []int64
	Removed      []int64
	Unchanged    bool
}

// candidateStream is the minimal shape Match needs from a stream,
// decoupled from models.Stream so tests don't need a full UDI.
type candidateStream struct {
	ID           int64
	Name         string
	AccountID    *int64
	HasDeadPrefix bool
}

// Options parameterizes one matching run.
type Options struct {
	ChannelID                int64
	ChannelName              string
	CurrentStreamIDs         []int64
	Patterns                 []models.RegexPatternRecord
	Compile                  func(pattern, channelName string) (Matcher, error)
	AllStreams               []models.Stream
	GloballyEnabledAccounts  map[int64]struct{} // nil means "no restriction"
	RemoveNonMatching        bool
}

// Match runs one channel's matching pass (spec §4.3). It never calls
// upstream; callers persist Result.NewStreams themselves.
func Match(opts Options) Result {
	candidates := map[int64]candidateStream{}

	for _, p := range opts.Patterns {
		if !p.Enabled {
			continue
		}
		re, err := opts.Compile(p.Pattern, opts.ChannelName)
		if err != nil || re == nil {
			continue
		}
		for _, stream := range opts.AllStreams {
			if len(p.M3UAccounts) > 0 {
				if stream.M3UAccountID == nil {
					continue
				}
				if _, ok := p.M3UAccounts[*stream.M3UAccountID]; !ok {
					continue
				}
			}
			if !re.MatchString(stream.Name) {
				continue
			}
			candidates[stream.ID] = candidateStream{
				ID:            stream.ID,
				Name:          stream.Name,
				AccountID:     stream.M3UAccountID,
				HasDeadPrefix: stream.HasDeadPrefix(),
			}
		}
	}

	for id, c := range candidates {
		if c.HasDeadPrefix {
			delete(candidates, id)
			continue
		}
		if opts.GloballyEnabledAccounts != nil {
			if c.AccountID == nil {
				delete(candidates, id)
				continue
			}
			if _, ok := opts.GloballyEnabledAccounts[*c.AccountID]; !ok {
				delete(candidates, id)
			}
		}
	}

	return buildResult(opts, candidates)
}

// buildResult reconciles the candidate set against current membership:
// retained ids keep their relative order, added ids append at the
// end, and (when enabled) currently-held ids that match no pattern
// are dropped.
func buildResult(opts Options, candidates map[int64]candidateStream) Result {
	currentSet := make(map[int64]struct{}, len(opts.CurrentStreamIDs))
	for _, id := range opts.CurrentStreamIDs {
		currentSet[id] = struct{}{}
	}

	var retained, removed []int64
	for _, id := range opts.CurrentStreamIDs {
		_, isCandidate := candidates[id]
		if isCandidate {
			retained = append(retained, id)
			continue
		}
		if opts.RemoveNonMatching {
			removed = append(removed, id)
			continue
		}
		// Not a current pattern match, but retained because
		// remove_non_matching_streams is off (spec §4.3).
		retained = append(retained, id)
	}

	var added []int64
	for id := range candidates {
		if _, ok := currentSet[id]; !ok {
			added = append(added, id)
		}
	}
	sortInt64s(added)

	newStreams := append(append([]int64{}, retained...), added...)

	if len(added) == 0 && len(removed) == 0 {
		return Result{ChannelID: opts.ChannelID, NewStreams: opts.CurrentStreamIDs, Unchanged: true}
	}

	return Result{
		ChannelID:  opts.ChannelID,
		NewStreams: newStreams,
		Added:      added,
		Removed:    removed,
	}
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
