// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package probestore persists the most recent ProbeResult for every
// stream the Probe Runner has ever probed. It backs the 2-hour
// immunity window (spec §4.8 step 1) and the Scheduler's
// rescore_resort_all operation (spec §4.9), which recomputes scores
// from cached results without re-probing.
package probestore

import (
	"fmt"
	"time"

	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/store"
)

type blob struct {
	Streams map[int64]models.ProbeResult `json:"streams"`
}

func defaultBlob() blob { return blob{Streams: map[int64]models.ProbeResult{}} }

// Store is the probe-result cache.
type Store struct {
	jsonStore *store.JSONStore[blob]
}

// Open initializes the backing stream_probe_results.json file under dir.
func Open(dir string) (*Store, error) {
	js, err := store.NewJSONStore(dir, "stream_probe_results.json", defaultBlob(), nil)
	if err != nil {
		return nil, fmt.Errorf("open probe-result store: %w", err)
	}
	return &Store{jsonStore: js}, nil
}

// Get returns the cached result for streamID, if any.
func (s *Store) Get(streamID int64) (models.ProbeResult, bool) {
	r, ok := s.jsonStore.Get().Streams[streamID]
	return r, ok
}

// Immune reports whether streamID's cached result was checked within
// window of now — true means the Probe Runner should skip probing and
// reuse the cached result (spec §4.8 step 1). A stream never probed is
// never immune.
func (s *Store) Immune(streamID int64, window time.Duration, now time.Time) bool {
	r, ok := s.Get(streamID)
	if !ok {
		return false
	}
	return now.Sub(r.LastCheckedAt) < window
}

// Set records streamID's latest probe result.
func (s *Store) Set(streamID int64, result models.ProbeResult) error {
	return s.jsonStore.Update(func(cur blob) (blob, error) {
		cur.Streams[streamID] = result
		return cur, nil
	})
}

// All returns every cached result, keyed by stream id.
func (s *Store) All() map[int64]models.ProbeResult {
	snap := s.jsonStore.Get().Streams
	out := make(map[int64]models.ProbeResult, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out
}
