// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package regexstore implements the Regex Pattern Store (spec §4.3):
// an ordered, per-channel list of match patterns plus a set of
// "common" patterns applied to every channel, with the preprocessing
// and compilation rules the Matching Engine relies on.
package regexstore

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/streamforge/controller/internal/logging"
	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/store"
)

const channelNameToken = "CHANNEL_NAME"

var literalSpaceRun = regexp.MustCompile(` +`)

type blob struct {
	Channels map[int64][]models.RegexPatternRecord `json:"channels"`
	Common   []models.RegexPatternRecord           `json:"common"`
}

func defaultBlob() blob {
	return blob{Channels: map[int64][]models.RegexPatternRecord{}}
}

// Store is the Regex Pattern Store.
type Store struct {
	jsonStore *store.JSONStore[blob]

	compileMu sync.Mutex
	compiled  map[string]*regexp.Regexp
}

// Open initializes the backing channel_regex_config.json file under dir.
func Open(dir string) (*Store, error) {
	js, err := store.NewJSONStore(dir, "channel_regex_config.json", defaultBlob(), nil)
	if err != nil {
		return nil, fmt.Errorf("open regex config: %w", err)
	}
	return &Store{jsonStore: js, compiled: map[string]*regexp.Regexp{}}, nil
}

// Patterns returns the channel's own pattern list followed by the
// common patterns, in that order — channel-specific rules take
// priority in any ordering-sensitive consumer.
func (s *Store) Patterns(channelID int64) []models.RegexPatternRecord {
	b := s.jsonStore.Get()
	out := make([]models.RegexPatternRecord, 0, len(b.Channels[channelID])+len(b.Common))
	out = append(out, b.Channels[channelID]...)
	out = append(out, b.Common...)
	return out
}

// ChannelPatterns returns only a channel's own pattern list, without
// the common patterns Patterns appends — the shape the HTTP Control
// Surface edits directly (spec §6 GET/PUT /regex-patterns).
func (s *Store) ChannelPatterns(channelID int64) []models.RegexPatternRecord {
	return append([]models.RegexPatternRecord(nil), s.jsonStore.Get().Channels[channelID]...)
}

// SetPatterns replaces a channel's own pattern list wholesale.
func (s *Store) SetPatterns(channelID int64, patterns []models.RegexPatternRecord) error {
	return s.jsonStore.Update(func(cur blob) (blob, error) {
		cur.Channels[channelID] = patterns
		return cur, nil
	})
}

// AddPattern appends one pattern to a channel's list.
func (s *Store) AddPattern(channelID int64, p models.RegexPatternRecord) error {
	return s.jsonStore.Update(func(cur blob) (blob, error) {
		cur.Channels[channelID] = append(cur.Channels[channelID], p)
		return cur, nil
	})
}

// DeletePattern removes the pattern at index from a channel's list.
func (s *Store) DeletePattern(channelID int64, index int) error {
	return s.jsonStore.Update(func(cur blob) (blob, error) {
		list := cur.Channels[channelID]
		if index < 0 || index >= len(list) {
			return cur, fmt.Errorf("regexstore: index %d out of range for channel %d", index, channelID)
		}
		cur.Channels[channelID] = append(list[:index], list[index+1:]...)
		return cur, nil
	})
}

// Common returns the patterns applied to every channel.
func (s *Store) Common() []models.RegexPatternRecord {
	return s.jsonStore.Get().Common
}

// SetCommon replaces the common pattern list wholesale.
func (s *Store) SetCommon(patterns []models.RegexPatternRecord) error {
	return s.jsonStore.Update(func(cur blob) (blob, error) {
		cur.Common = patterns
		return cur, nil
	})
}

// BulkSetEnabled toggles the enabled flag of every pattern across the
// given channel ids (spec §6 POST /regex-patterns/bulk-edit).
func (s *Store) BulkSetEnabled(channelIDs []int64, enabled bool) error {
	return s.jsonStore.Update(func(cur blob) (blob, error) {
		for _, id := range channelIDs {
			list := cur.Channels[id]
			for i := range list {
				list[i].Enabled = enabled
			}
			cur.Channels[id] = list
		}
		return cur, nil
	})
}

// Preprocess applies the two textual rewrite rules (spec §4.3 steps
// 1-2): CHANNEL_NAME substitution then space-run collapsing. It is
// idempotent — running it twice on its own output is a no-op, since
// neither rewrite can reintroduce a literal space run or the token.
func Preprocess(pattern, channelName string) string {
	expanded := strings.ReplaceAll(pattern, channelNameToken, regexp.QuoteMeta(channelName))
	return literalSpaceRun.ReplaceAllString(expanded, `\s+`)
}

// Compile preprocesses and compiles pattern for channelName, caching
// the result keyed by the exact (pattern, channelName) pair so a
// matching run over many streams on the same channel compiles each
// pattern once. Invalid patterns return an error; callers must skip
// and log per spec §4.3 step 3 rather than fail the run.
func (s *Store) Compile(pattern, channelName string) (*regexp.Regexp, error) {
	key := channelName + "\x00" + pattern

	s.compileMu.Lock()
	defer s.compileMu.Unlock()

	if re, ok := s.compiled[key]; ok {
		return re, nil
	}

	re, err := regexp.Compile(Preprocess(pattern, channelName))
	if err != nil {
		logging.Warn().Err(err).Str("pattern", pattern).Str("channel", channelName).Msg("skipping invalid regex pattern")
		return nil, err
	}
	s.compiled[key] = re
	return re, nil
}
