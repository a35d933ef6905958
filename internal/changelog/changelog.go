// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package changelog implements the append-only activity log referenced
// throughout spec §4.9: every playlist refresh, matching run, probe
// cycle, and global action appends a entry, totally ordered by a
// monotonic sequence number plus timestamp, queryable by a trailing
// time window.
package changelog

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamforge/controller/internal/store"
)

// Entry is one changelog record.
type Entry struct {
	ID        string    `json:"id"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	ChannelID *int64    `json:"channel_id,omitempty"`
	Message   string    `json:"message"`
}

type blob struct {
	Entries      []Entry `json:"entries"`
	NextSequence uint64  `json:"next_sequence"`
}

func defaultBlob() blob { return blob{} }

// Log is the Changelog.
type Log struct {
	jsonStore *store.JSONStore[blob]
}

// Open initializes the backing changelog.json file under dir.
func Open(dir string) (*Log, error) {
	js, err := store.NewJSONStore(dir, "changelog.json", defaultBlob(), nil)
	if err != nil {
		return nil, fmt.Errorf("open changelog: %w", err)
	}
	return &Log{jsonStore: js}, nil
}

// Append adds one entry. Sequence assignment happens under the
// backing store's lock, so concurrent appends are still totally
// ordered.
func (l *Log) Append(category string, channelID *int64, message string, now time.Time) error {
	return l.jsonStore.Update(func(cur blob) (blob, error) {
		cur.Entries = append(cur.Entries, Entry{
			ID:        uuid.NewString(),
			Sequence:  cur.NextSequence,
			Timestamp: now,
			Category:  category,
			ChannelID: channelID,
			Message:   message,
		})
		cur.NextSequence++
		return cur, nil
	})
}

// Since returns every entry with a timestamp on or after (now - days).
// Entries are returned in append (sequence) order.
func (l *Log) Since(days int, now time.Time) []Entry {
	cutoff := now.AddDate(0, 0, -days)
	entries := l.jsonStore.Get().Entries
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}
