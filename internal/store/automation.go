// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "github.com/streamforge/controller/internal/models"

// AutomationConfig drives the Scheduler's periodic playlist tick and
// the automatic matching/checking it fans out into (spec §4.9).
type AutomationConfig struct {
	PlaylistUpdateIntervalMinutes int    `json:"playlist_update_interval_minutes" validate:"omitempty,min=1"`
	CronExpression                string `json:"cron_expression,omitempty"`
	AutoStreamMatching             bool   `json:"auto_stream_matching"`
	AutoQualityChecking            bool   `json:"auto_quality_checking"`
	RemoveNonMatchingStreams       bool   `json:"remove_non_matching_streams"`
	GlobalActionCronExpression     string `json:"global_action_cron_expression,omitempty"`
}

// DefaultAutomationConfig mirrors the bootstrap engine defaults
// (internal/config) until overridden through the HTTP surface.
func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		PlaylistUpdateIntervalMinutes: 60,
		AutoStreamMatching:            true,
		AutoQualityChecking:           true,
		RemoveNonMatchingStreams:      false,
		GlobalActionCronExpression:    "0 4 * * *",
	}
}

// ProviderDiversificationMode selects how the Probe Runner interleaves
// scored streams across m3u accounts (spec §4.8 step 7).
type ProviderDiversificationMode string

const (
	DiversificationOff             ProviderDiversificationMode = "off"
	DiversificationRoundRobin      ProviderDiversificationMode = "round_robin"
	DiversificationPriorityWeighted ProviderDiversificationMode = "priority_weighted"
)

// AccountStreamLimits bounds the number of streams a channel may keep
// from a single account after scoring (spec §4.6/§4.8 step 8).
type AccountStreamLimits struct {
	GlobalLimit  int           `json:"global_limit"`
	PerAccount   map[int64]int `json:"per_account,omitempty"`
}

// EffectiveLimit returns the limit that applies to accountID: its
// per-account override if present, else the global limit. 0 means
// unlimited.
func (l AccountStreamLimits) EffectiveLimit(accountID int64) int {
	if v, ok := l.PerAccount[accountID]; ok {
		return v
	}
	return l.GlobalLimit
}

// StreamCheckerConfig drives the Probe Runner (spec §4.8).
type StreamCheckerConfig struct {
	GlobalConcurrentLimit    int                         `json:"global_concurrent_limit" validate:"omitempty,min=1"`
	ImmunityWindowHours      int                         `json:"immunity_window_hours" validate:"omitempty,min=0"`
	StaleTokenThresholdMinutes int                       `json:"stale_token_threshold_minutes" validate:"omitempty,min=1"`
	TryFullProfiles          bool                        `json:"try_full_profiles"`
	Phase2MaxWaitSeconds     int                         `json:"phase2_max_wait_seconds" validate:"omitempty,min=0"`
	Phase2PollIntervalSeconds int                        `json:"phase2_poll_interval_seconds" validate:"omitempty,min=1"`
	ProviderDiversification  ProviderDiversificationMode `json:"provider_diversification" validate:"omitempty,oneof=off round_robin priority_weighted"`
	AccountStreamLimits      AccountStreamLimits         `json:"account_stream_limits"`
	QualityWeights           QualityWeights              `json:"quality_weights"`
}

// QualityWeights parameterizes the Quality Scorer (spec §4.7).
type QualityWeights struct {
	Resolution float64 `json:"resolution"`
	Bitrate    float64 `json:"bitrate"`
	FPS        float64 `json:"fps"`
	Codec      float64 `json:"codec"`
}

// DefaultStreamCheckerConfig mirrors the bootstrap engine defaults.
func DefaultStreamCheckerConfig() StreamCheckerConfig {
	return StreamCheckerConfig{
		GlobalConcurrentLimit:      8,
		ImmunityWindowHours:        2,
		StaleTokenThresholdMinutes: 60,
		TryFullProfiles:            true,
		Phase2MaxWaitSeconds:       120,
		Phase2PollIntervalSeconds:  5,
		ProviderDiversification:    DiversificationRoundRobin,
		AccountStreamLimits:        AccountStreamLimits{GlobalLimit: 0},
		QualityWeights: QualityWeights{
			Resolution: 0.4,
			Bitrate:    0.3,
			FPS:        0.2,
			Codec:      0.1,
		},
	}
}

// ProfileConfig is the persisted snapshot of per-profile preferences
// (e.g. whether a disabled profile should be revived and considered
// again by Phase 1/Phase 2 profile resolution).
type ProfileConfig struct {
	Preferences map[int64]models.QualityPreference `json:"preferences,omitempty"`
	Disabled    map[int64]bool                     `json:"disabled,omitempty"`
}

// DefaultProfileConfig has no overrides: every profile uses the
// account's default quality preference and is enabled.
func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{
		Preferences: map[int64]models.QualityPreference{},
		Disabled:    map[int64]bool{},
	}
}
