// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import "github.com/streamforge/controller/internal/models"

// addPatternRequest is the POST /regex-patterns body.
type addPatternRequest struct {
	ChannelID int64                     `json:"channel_id" validate:"required"`
	Pattern   models.RegexPatternRecord `json:"pattern" validate:"required"`
}

// setPatternsRequest is the PUT /regex-patterns body.
type setPatternsRequest struct {
	ChannelID int64                       `json:"channel_id" validate:"required"`
	Patterns  []models.RegexPatternRecord `json:"patterns"`
}

// setCommonRequest is the POST /regex-patterns/common body.
type setCommonRequest struct {
	Patterns []models.RegexPatternRecord `json:"patterns"`
}

// bulkEditRequest is the POST /regex-patterns/bulk-edit body.
type bulkEditRequest struct {
	ChannelIDs []int64 `json:"channel_ids" validate:"required,min=1"`
	Enabled    bool    `json:"enabled"`
}

// massEditRequest is the POST /regex-patterns/mass-edit-preview and
// /regex-patterns/mass-edit body: a literal find/replace applied
// across every pattern's text (enabled or not), optionally scoped to a
// set of channels.
type massEditRequest struct {
	ChannelIDs []int64 `json:"channel_ids,omitempty"`
	Find       string  `json:"find" validate:"required"`
	Replace    string  `json:"replace"`
}

// massEditMatch describes one pattern a mass-edit would touch or did
// touch.
type massEditMatch struct {
	ChannelID int64  `json:"channel_id"`
	Index     int    `json:"index"`
	Before    string `json:"before"`
	After     string `json:"after"`
}

// testRegexLiveRequest is the POST /test-regex-live body.
type testRegexLiveRequest struct {
	Patterns   []string `json:"patterns" validate:"required,min=1"`
	ChannelID  *int64   `json:"channel_id,omitempty"`
	MaxMatches int      `json:"max_matches" validate:"omitempty,min=1"`
}

// testRegexLiveMatch is one stream matched during a live regex test.
type testRegexLiveMatch struct {
	StreamID int64  `json:"stream_id"`
	Name     string `json:"name"`
	Pattern  string `json:"pattern"`
}

// settingsRequest is the PUT /channel-settings/{id} and
// PUT /group-settings/{id} body.
type settingsRequest struct {
	MatchingMode      models.ToggleMode        `json:"matching_mode" validate:"omitempty,oneof=default enabled disabled"`
	CheckingMode      models.ToggleMode        `json:"checking_mode" validate:"omitempty,oneof=default enabled disabled"`
	QualityPreference models.QualityPreference `json:"quality_preference" validate:"omitempty,oneof=default prefer_4k avoid_4k max_1080p max_720p"`
}

// checkSingleChannelRequest is the POST
// /stream-checker/check-single-channel body.
type checkSingleChannelRequest struct {
	ChannelID int64 `json:"channel_id" validate:"required"`
	Force     bool  `json:"force"`
}

// queueAddRequest is the POST /stream-checker/queue/add body.
type queueAddRequest struct {
	ChannelIDs []int64 `json:"channel_ids" validate:"required,min=1"`
	Priority   int     `json:"priority"`
}
