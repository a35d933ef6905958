// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"

	"github.com/streamforge/controller/internal/models"
)

// membership adapts h.idx to settings.GroupMembership for the current
// request.
func (h *Handler) membership() udiMembership {
	return udiMembership{idx: h.idx}
}

// GetChannelSettings handles GET /channel-settings/{id}, returning the
// resolved effective settings (channel override over group override
// over default, spec §4.4).
func (h *Handler) GetChannelSettings(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	channelID, ok := parseURLInt64(rw, r, "id")
	if !ok {
		return
	}
	if _, exists := h.idx.GetChannel(channelID); !exists {
		rw.notFound("channel not found")
		return
	}

	rw.ok(h.settings.Effective(channelID, h.membership()))
}

// PutChannelSettings handles PUT /channel-settings/{id}.
func (h *Handler) PutChannelSettings(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	channelID, ok := parseURLInt64(rw, r, "id")
	if !ok {
		return
	}
	var req settingsRequest
	if !bindJSON(rw, r, &req) {
		return
	}

	v := models.Settings{
		MatchingMode:      req.MatchingMode,
		CheckingMode:      req.CheckingMode,
		QualityPreference: req.QualityPreference,
	}
	if err := h.settings.SetChannelSetting(channelID, v); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(h.settings.Effective(channelID, h.membership()))
}

// GetGroupSettings handles GET /group-settings/{id}.
func (h *Handler) GetGroupSettings(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	groupID, ok := parseURLInt64(rw, r, "id")
	if !ok {
		return
	}
	v, exists := h.settings.GroupSetting(groupID)
	if !exists {
		v = models.DefaultSettings()
	}
	rw.ok(v)
}

// PutGroupSettings handles PUT /group-settings/{id}.
func (h *Handler) PutGroupSettings(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	groupID, ok := parseURLInt64(rw, r, "id")
	if !ok {
		return
	}
	var req settingsRequest
	if !bindJSON(rw, r, &req) {
		return
	}

	v := models.Settings{
		MatchingMode:      req.MatchingMode,
		CheckingMode:      req.CheckingMode,
		QualityPreference: req.QualityPreference,
	}
	if err := h.settings.SetGroupSetting(groupID, v); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(v)
}

// BulkDisableGroupMatching handles POST
// /group-settings/bulk-disable-matching: sets matching_mode=disabled
// on every non-empty group (spec §4.4 bulk_set_group_field).
func (h *Handler) BulkDisableGroupMatching(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	updated, err := h.settings.BulkSetGroupField(h.membership(), "matching_mode", string(models.ModeDisabled))
	if err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(map[string]int{"updated": updated})
}

// BulkDisableGroupChecking handles POST
// /group-settings/bulk-disable-checking.
func (h *Handler) BulkDisableGroupChecking(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	updated, err := h.settings.BulkSetGroupField(h.membership(), "checking_mode", string(models.ModeDisabled))
	if err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(map[string]int{"updated": updated})
}
