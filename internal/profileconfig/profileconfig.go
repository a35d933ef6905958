// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package profileconfig wraps the Profile Config blob (internal/store)
// with the domain operations the Probe Runner and HTTP Control
// Surface need: per-profile quality-preference overrides and the
// disable/revive toggle that determines whether a profile is still
// offered to Phase 1/Phase 2 profile resolution.
package profileconfig

import (
	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/store"
)

// Store is a thin, domain-named façade over *store.JSONStore[store.ProfileConfig].
type Store struct {
	jsonStore *store.JSONStore[store.ProfileConfig]
}

// New wraps an already-opened profile config blob (internal/store.Store.Profile).
func New(jsonStore *store.JSONStore[store.ProfileConfig]) *Store {
	return &Store{jsonStore: jsonStore}
}

// IsDisabled reports whether profileID has been administratively
// disabled — disabled profiles are excluded from Phase 1/Phase 2
// availability regardless of their upstream is_active flag.
func (s *Store) IsDisabled(profileID int64) bool {
	return s.jsonStore.Get().Disabled[profileID]
}

// Disable marks a profile as unavailable for probing.
func (s *Store) Disable(profileID int64) error {
	return s.jsonStore.Update(func(cur store.ProfileConfig) (store.ProfileConfig, error) {
		if cur.Disabled == nil {
			cur.Disabled = map[int64]bool{}
		}
		cur.Disabled[profileID] = true
		return cur, nil
	})
}

// Revive re-enables a previously disabled profile so it is offered to
// profile resolution again.
func (s *Store) Revive(profileID int64) error {
	return s.jsonStore.Update(func(cur store.ProfileConfig) (store.ProfileConfig, error) {
		delete(cur.Disabled, profileID)
		return cur, nil
	})
}

// QualityPreference returns the profile's override if set, else
// accountDefault.
func (s *Store) QualityPreference(profileID int64, accountDefault models.QualityPreference) models.QualityPreference {
	if pref, ok := s.jsonStore.Get().Preferences[profileID]; ok {
		return pref
	}
	return accountDefault
}

// SetQualityPreference persists a per-profile quality-preference override.
func (s *Store) SetQualityPreference(profileID int64, pref models.QualityPreference) error {
	return s.jsonStore.Update(func(cur store.ProfileConfig) (store.ProfileConfig, error) {
		if cur.Preferences == nil {
			cur.Preferences = map[int64]models.QualityPreference{}
		}
		cur.Preferences[profileID] = pref
		return cur, nil
	})
}

// FilterAvailable removes disabled profiles from profiles, preserving
// order — the filter Phase 1/Phase 2 resolution applies before
// consulting upstream is_active/capacity.
func (s *Store) FilterAvailable(profiles []models.Profile) []models.Profile {
	disabled := s.jsonStore.Get().Disabled
	if len(disabled) == 0 {
		return profiles
	}
	out := make([]models.Profile, 0, len(profiles))
	for _, p := range profiles {
		if !disabled[p.ID] {
			out = append(out, p)
		}
	}
	return out
}
