// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package updatetracker implements the Update Tracker (spec §3): per-
// channel freshness bookkeeping the Scheduler and Probe Runner use to
// decide whether a channel has changed since it was last processed
// and whether a caller has asked to skip the normal skip-if-recent
// rule.
package updatetracker

import (
	"fmt"
	"time"

	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/store"
)

type blob struct {
	Channels map[int64]models.UpdateState `json:"channels"`
}

func defaultBlob() blob { return blob{Channels: map[int64]models.UpdateState{}} }

// Tracker is the Update Tracker.
type Tracker struct {
	jsonStore *store.JSONStore[blob]
}

// Open initializes the backing channel_updates.json file under dir.
func Open(dir string) (*Tracker, error) {
	js, err := store.NewJSONStore(dir, "channel_updates.json", defaultBlob(), nil)
	if err != nil {
		return nil, fmt.Errorf("open update tracker: %w", err)
	}
	return &Tracker{jsonStore: js}, nil
}

// Get returns the zero-value UpdateState for a channel never recorded.
func (t *Tracker) Get(channelID int64) models.UpdateState {
	return t.jsonStore.Get().Channels[channelID]
}

// RecordUpdate advances a channel's freshness after a successful
// write-back, clearing any pending force-check request.
func (t *Tracker) RecordUpdate(channelID int64, streamCount int, now time.Time) error {
	return t.jsonStore.Update(func(cur blob) (blob, error) {
		cur.Channels[channelID] = models.UpdateState{
			LastUpdatedAt:       now,
			LastStreamCount:     streamCount,
			ForceCheckRequested: false,
		}
		return cur, nil
	})
}

// RequestForceCheck marks a channel to bypass immunity/skip-if-recent
// on its next probe cycle (e.g. a manual HTTP trigger).
func (t *Tracker) RequestForceCheck(channelID int64) error {
	return t.jsonStore.Update(func(cur blob) (blob, error) {
		state := cur.Channels[channelID]
		state.ForceCheckRequested = true
		cur.Channels[channelID] = state
		return cur, nil
	})
}

// ConsumeForceCheck reports whether a force-check was pending and
// clears the flag so it fires exactly once.
func (t *Tracker) ConsumeForceCheck(channelID int64) (bool, error) {
	var wasSet bool
	err := t.jsonStore.Update(func(cur blob) (blob, error) {
		state := cur.Channels[channelID]
		wasSet = state.ForceCheckRequested
		state.ForceCheckRequested = false
		cur.Channels[channelID] = state
		return cur, nil
	})
	return wasSet, err
}
