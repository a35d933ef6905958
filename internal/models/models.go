// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models holds the plain data types shared across the
// automation engine: streams, channels, accounts, profiles, and the
// derived/cached records the engine keeps alongside them.
package models

import "time"

// DeadPrefix marks a stream name as dead in the upstream's own naming
// convention, independent of the dead-stream tracker set.
const DeadPrefix = "[DEAD]"

// Stream is one playable source as reported by the upstream.
type Stream struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	M3UAccountID *int64 `json:"m3u_account_id"`
	IsCustom     bool   `json:"is_custom"`
}

// HasDeadPrefix reports whether the stream's upstream name carries the
// textual dead marker.
func (s Stream) HasDeadPrefix() bool {
	return len(s.Name) >= len(DeadPrefix) && s.Name[:len(DeadPrefix)] == DeadPrefix
}

// Channel is a user-facing grouping with an ordered list of stream ids.
type Channel struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Number         float64 `json:"number"`
	LogoID         *int64  `json:"logo_id"`
	ChannelGroupID *int64  `json:"channel_group_id"`
	Streams        []int64 `json:"streams"`
}

// ChannelGroup is only surfaced to callers when it has at least one
// channel (ChannelCount > 0).
type ChannelGroup struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	ChannelCount     int    `json:"channel_count"`
	M3UAccountCount  int    `json:"m3u_account_count"`
}

// Profile is an alternate access path on an M3UAccount, optionally
// rewriting stream URLs via a search/replace regex pair.
type Profile struct {
	ID             int64  `json:"id"`
	AccountID      int64  `json:"account_id"`
	Name           string `json:"name"`
	MaxStreams     int    `json:"max_streams"`
	IsActive       bool   `json:"is_active"`
	SearchPattern  string `json:"search_pattern,omitempty"`
	ReplacePattern string `json:"replace_pattern,omitempty"`
	IsDefault      bool   `json:"is_default,omitempty"`
}

// Available reports whether the profile may currently accept a new
// session given its declared capacity and the number of sessions
// already active on it.
func (p Profile) Available(activeSessions int) bool {
	if !p.IsActive {
		return false
	}
	if p.MaxStreams == 0 {
		return true
	}
	return activeSessions < p.MaxStreams
}

// M3UAccount is a credential and provider identity with one or more
// Profiles.
type M3UAccount struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	ServerURL  string    `json:"server_url"`
	MaxStreams int       `json:"max_streams"`
	Priority   int       `json:"priority"`
	Proxy      string    `json:"proxy,omitempty"`
	Profiles   []Profile `json:"profiles"`
}

// ProxySessionState is the upstream-reported state of a single active
// channel's proxy session.
type ProxySessionState string

const (
	ProxySessionActive ProxySessionState = "active"
	ProxySessionIdle   ProxySessionState = "idle"
)

// ProxySession is one entry of the live per-channel view published by
// the upstream.
type ProxySession struct {
	ChannelID    int64             `json:"channel_id"`
	State        ProxySessionState `json:"state"`
	M3UProfileID int64             `json:"m3u_profile_id"`
	ClientCount  int               `json:"client_count"`
	StreamID     *int64            `json:"stream_id,omitempty"`
}

// RegexPatternRecord is one ordered pattern entry of a channel's regex
// list. Pattern text may contain the literal token CHANNEL_NAME and
// literal runs of spaces, both rewritten at match time.
type RegexPatternRecord struct {
	Pattern     string        `json:"pattern"`
	M3UAccounts map[int64]struct{} `json:"m3u_accounts,omitempty"`
	Enabled     bool          `json:"enabled"`
}

// MatchingMode and CheckingMode gate, per channel or group, whether
// the Matching Engine and Probe Runner operate on a channel.
type ToggleMode string

const (
	ModeDefault  ToggleMode = "default"
	ModeEnabled  ToggleMode = "enabled"
	ModeDisabled ToggleMode = "disabled"
)

// QualityPreference adjusts scoring toward or away from a resolution
// band.
type QualityPreference string

const (
	QualityDefault   QualityPreference = "default"
	QualityPrefer4K  QualityPreference = "prefer_4k"
	QualityAvoid4K   QualityPreference = "avoid_4k"
	QualityMax1080p  QualityPreference = "max_1080p"
	QualityMax720p   QualityPreference = "max_720p"
)

// Settings is the shape shared by ChannelSettings and GroupSettings.
type Settings struct {
	MatchingMode      ToggleMode        `json:"matching_mode"`
	CheckingMode      ToggleMode        `json:"checking_mode"`
	QualityPreference QualityPreference `json:"quality_preference"`
}

// DefaultSettings is the global fallback: matching/checking enabled,
// no quality preference.
func DefaultSettings() Settings {
	return Settings{
		MatchingMode:      ModeEnabled,
		CheckingMode:      ModeEnabled,
		QualityPreference: QualityDefault,
	}
}

// UpdateState is per-channel freshness bookkeeping.
type UpdateState struct {
	LastUpdatedAt      time.Time `json:"last_updated_at"`
	LastStreamCount    int       `json:"last_stream_count"`
	ForceCheckRequested bool     `json:"force_check_requested"`
}

// DeadStreamRecord is a persisted entry in the dead-stream tracker.
type DeadStreamRecord struct {
	StreamID    int64     `json:"stream_id"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Reason      string    `json:"reason"`
}

// ProbeStatus is the outcome of a single media-analyzer invocation.
type ProbeStatus string

const (
	ProbeStatusOK      ProbeStatus = "OK"
	ProbeStatusError   ProbeStatus = "Error"
	ProbeStatusTimeout ProbeStatus = "Timeout"
)

// ProbeResult is the cached outcome of the most recent probe of a
// stream.
type ProbeResult struct {
	Status        ProbeStatus `json:"status"`
	ResolutionW   int         `json:"resolution_w"`
	ResolutionH   int         `json:"resolution_h"`
	FPS           float64     `json:"fps"`
	VideoCodec    string      `json:"video_codec"`
	AudioCodec    string      `json:"audio_codec"`
	BitrateKbps   *int        `json:"bitrate_kbps"`
	LastCheckedAt time.Time   `json:"last_checked_at"`
	UsedProfileID *int64      `json:"used_profile_id"`
	ErrorMessage  *string     `json:"error_message"`
}

// IsDead reports whether a completed, OK probe nonetheless indicates
// an unplayable stream (zero resolution or zero bitrate).
func (p ProbeResult) IsDead() bool {
	if p.Status != ProbeStatusOK {
		return false
	}
	if p.ResolutionW == 0 || p.ResolutionH == 0 {
		return true
	}
	return p.BitrateKbps != nil && *p.BitrateKbps == 0
}

// ChannelQueueEntry is one pending or in-progress unit of probe work.
type ChannelQueueEntry struct {
	ChannelID  int64     `json:"channel_id"`
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	ForceCheck bool      `json:"force_check"`
}

// ScoredStream pairs a stream id with its computed quality score and
// account, used during sort/diversify/trim.
type ScoredStream struct {
	StreamID     int64
	AccountID    int64
	AccountName  string
	Priority     int
	Score        float64
	UsedProfileID *int64
}
