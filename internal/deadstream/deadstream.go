// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package deadstream implements the Dead-Stream Tracker (spec §3,
// §4.8): a persistent set of stream ids previously determined
// unplayable, with a revival protocol for when a later probe comes
// back healthy, and a wholesale clear at the start of every global
// action.
package deadstream

import (
	"fmt"
	"time"

	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/store"
)

type blob struct {
	Streams map[int64]models.DeadStreamRecord `json:"streams"`
}

func defaultBlob() blob { return blob{Streams: map[int64]models.DeadStreamRecord{}} }

// Tracker is the Dead-Stream Tracker.
type Tracker struct {
	jsonStore *store.JSONStore[blob]
}

// Open initializes the backing dead_streams.json file under dir.
func Open(dir string) (*Tracker, error) {
	js, err := store.NewJSONStore(dir, "dead_streams.json", defaultBlob(), nil)
	if err != nil {
		return nil, fmt.Errorf("open dead-stream tracker: %w", err)
	}
	return &Tracker{jsonStore: js}, nil
}

// IsDead reports whether streamID is currently tracked as dead.
func (t *Tracker) IsDead(streamID int64) bool {
	_, ok := t.jsonStore.Get().Streams[streamID]
	return ok
}

// MarkDead records (or refreshes) a dead stream. First-seen is
// preserved across repeat sightings; last-seen and reason always
// update to the latest probe.
func (t *Tracker) MarkDead(streamID int64, reason string, now time.Time) error {
	return t.jsonStore.Update(func(cur blob) (blob, error) {
		rec, existed := cur.Streams[streamID]
		if !existed {
			rec.FirstSeenAt = now
		}
		rec.StreamID = streamID
		rec.LastSeenAt = now
		rec.Reason = reason
		cur.Streams[streamID] = rec
		return cur, nil
	})
}

// Revive removes streamID from the dead set — called when a
// subsequent probe comes back healthy (spec §4.8 step 4).
func (t *Tracker) Revive(streamID int64) error {
	return t.jsonStore.Update(func(cur blob) (blob, error) {
		delete(cur.Streams, streamID)
		return cur, nil
	})
}

// ClearAll wipes the entire set. Called exactly once per global
// action, before any refresh/match/probe work begins (spec §4.9).
func (t *Tracker) ClearAll() error {
	return t.jsonStore.Update(func(blob) (blob, error) {
		return defaultBlob(), nil
	})
}

// List returns every currently-tracked dead stream.
func (t *Tracker) List() []models.DeadStreamRecord {
	snap := t.jsonStore.Get().Streams
	out := make([]models.DeadStreamRecord, 0, len(snap))
	for _, rec := range snap {
		out = append(out, rec)
	}
	return out
}

// Count returns how many streams are currently tracked as dead.
func (t *Tracker) Count() int {
	return len(t.jsonStore.Get().Streams)
}
