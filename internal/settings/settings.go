// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings implements the Channel Settings / Group Settings
// store (spec §4.4): per-channel and per-group overrides of matching
// mode, checking mode, and quality preference, with channel settings
// taking priority over group settings over the global default.
package settings

import (
	"fmt"
	"sort"

	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/store"
)

// channelBlob and groupBlob are the on-disk shapes: a sparse map keyed
// by id, so channels/groups with no override simply have no entry.
type channelBlob struct {
	Channels map[int64]models.Settings `json:"channels"`
}

type groupBlob struct {
	Groups map[int64]models.Settings `json:"groups"`
}

func defaultChannelBlob() channelBlob { return channelBlob{Channels: map[int64]models.Settings{}} }
func defaultGroupBlob() groupBlob     { return groupBlob{Groups: map[int64]models.Settings{}} }

// GroupMembership resolves a channel's group and the group's current
// channel count, so Store can apply the bulk-edit eligibility rule
// (groups with channel_count>0) and so Effective can fall through to
// a group override.
type GroupMembership interface {
	GroupIDFor(channelID int64) (groupID int64, ok bool)
	NonEmptyGroupIDs() []int64
}

// Store is the Channel Settings / Group Settings component.
type Store struct {
	channels *store.JSONStore[channelBlob]
	groups   *store.JSONStore[groupBlob]
}

// Open initializes both backing JSON files under dir.
func Open(dir string) (*Store, error) {
	channels, err := store.NewJSONStore(dir, "channel_settings.json", defaultChannelBlob(), nil)
	if err != nil {
		return nil, fmt.Errorf("open channel settings: %w", err)
	}
	groups, err := store.NewJSONStore(dir, "group_settings.json", defaultGroupBlob(), nil)
	if err != nil {
		return nil, fmt.Errorf("open group settings: %w", err)
	}
	return &Store{channels: channels, groups: groups}, nil
}

// ChannelSetting returns the raw per-channel override, if any.
func (s *Store) ChannelSetting(channelID int64) (models.Settings, bool) {
	v, ok := s.channels.Get().Channels[channelID]
	return v, ok
}

// GroupSetting returns the raw per-group override, if any.
func (s *Store) GroupSetting(groupID int64) (models.Settings, bool) {
	v, ok := s.groups.Get().Groups[groupID]
	return v, ok
}

// SetChannelSetting persists an override for one channel.
func (s *Store) SetChannelSetting(channelID int64, v models.Settings) error {
	return s.channels.Update(func(cur channelBlob) (channelBlob, error) {
		cur.Channels[channelID] = v
		return cur, nil
	})
}

// SetGroupSetting persists an override for one group.
func (s *Store) SetGroupSetting(groupID int64, v models.Settings) error {
	return s.groups.Update(func(cur groupBlob) (groupBlob, error) {
		cur.Groups[groupID] = v
		return cur, nil
	})
}

// Effective resolves channel_setting ?? group_setting ?? default
// (spec §4.4) field-by-field: a channel override only supplies the
// fields it sets, falling through per-field to the group override and
// finally the global default so a channel can override just one of
// matching/checking/quality without losing the others.
func (s *Store) Effective(channelID int64, membership GroupMembership) models.Settings {
	eff := models.DefaultSettings()

	if membership != nil {
		if groupID, ok := membership.GroupIDFor(channelID); ok {
			if g, ok := s.GroupSetting(groupID); ok {
				applyOverride(&eff, g)
			}
		}
	}

	if c, ok := s.ChannelSetting(channelID); ok {
		applyOverride(&eff, c)
	}

	return eff
}

// applyOverride copies only the non-default fields of override onto
// eff, so a group/channel setting that leaves a field at
// ModeDefault/QualityDefault doesn't clobber a lower-priority value.
func applyOverride(eff *models.Settings, override models.Settings) {
	if override.MatchingMode != models.ModeDefault && override.MatchingMode != "" {
		eff.MatchingMode = override.MatchingMode
	}
	if override.CheckingMode != models.ModeDefault && override.CheckingMode != "" {
		eff.CheckingMode = override.CheckingMode
	}
	if override.QualityPreference != models.QualityDefault && override.QualityPreference != "" {
		eff.QualityPreference = override.QualityPreference
	}
}

// IsHidden implements the HTTP façade's visibility rule: a channel is
// hidden in listings iff its effective matching and checking modes
// are both disabled.
func (s *Store) IsHidden(channelID int64, membership GroupMembership) bool {
	eff := s.Effective(channelID, membership)
	return eff.MatchingMode == models.ModeDisabled && eff.CheckingMode == models.ModeDisabled
}

// BulkSetGroupField applies value to the named field of every group
// with channel_count>0 (spec §4.4 bulk_set_group_field). field is one
// of "matching_mode", "checking_mode", "quality_preference".
func (s *Store) BulkSetGroupField(membership GroupMembership, field string, value string) (int, error) {
	ids := membership.NonEmptyGroupIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	updated := 0
	err := s.groups.Update(func(cur groupBlob) (groupBlob, error) {
		for _, id := range ids {
			v := cur.Groups[id]
			switch field {
			case "matching_mode":
				v.MatchingMode = models.ToggleMode(value)
			case "checking_mode":
				v.CheckingMode = models.ToggleMode(value)
			case "quality_preference":
				v.QualityPreference = models.QualityPreference(value)
			default:
				return cur, fmt.Errorf("settings: unknown bulk field %q", field)
			}
			cur.Groups[id] = v
			updated++
		}
		return cur, nil
	})
	return updated, err
}
