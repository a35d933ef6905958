// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/streamforge/controller/internal/models"
)

// GetRegexPatterns handles GET /regex-patterns?channel_id=N, returning
// that channel's own patterns (spec §6; common patterns are read via
// GET /regex-patterns/common).
func (h *Handler) GetRegexPatterns(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	channelID, ok := parseQueryInt64(rw, r, "channel_id")
	if !ok {
		return
	}

	rw.ok(h.regex.ChannelPatterns(channelID))
}

// GetCommonPatterns handles GET /regex-patterns/common.
func (h *Handler) GetCommonPatterns(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	rw.ok(h.regex.Common())
}

// AddRegexPattern handles POST /regex-patterns.
func (h *Handler) AddRegexPattern(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req addPatternRequest
	if !bindJSON(rw, r, &req) {
		return
	}

	if err := h.regex.AddPattern(req.ChannelID, req.Pattern); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.created(h.regex.ChannelPatterns(req.ChannelID))
}

// SetRegexPatterns handles PUT /regex-patterns.
func (h *Handler) SetRegexPatterns(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req setPatternsRequest
	if !bindJSON(rw, r, &req) {
		return
	}

	if err := h.regex.SetPatterns(req.ChannelID, req.Patterns); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(h.regex.ChannelPatterns(req.ChannelID))
}

// DeleteRegexPattern handles DELETE /regex-patterns/{channelID}/{index}.
func (h *Handler) DeleteRegexPattern(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	channelID, ok := parseURLInt64(rw, r, "channelID")
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		rw.badRequest("index must be an integer")
		return
	}

	if err := h.regex.DeletePattern(channelID, index); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.noContent()
}

// SetCommonPatterns handles POST /regex-patterns/common.
func (h *Handler) SetCommonPatterns(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req setCommonRequest
	if !decodeJSON(rw, r, &req) {
		return
	}

	if err := h.regex.SetCommon(req.Patterns); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(h.regex.Common())
}

// BulkEditRegexPatterns handles POST /regex-patterns/bulk-edit: toggles
// the enabled flag across a set of channels (spec §6).
func (h *Handler) BulkEditRegexPatterns(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req bulkEditRequest
	if !bindJSON(rw, r, &req) {
		return
	}

	if err := h.regex.BulkSetEnabled(req.ChannelIDs, req.Enabled); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(map[string]int{"updated": len(req.ChannelIDs)})
}

// MassEditPreview handles POST /regex-patterns/mass-edit-preview: a
// dry run of a literal find/replace over pattern text, returning every
// pattern it would touch without persisting anything.
func (h *Handler) MassEditPreview(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req massEditRequest
	if !bindJSON(rw, r, &req) {
		return
	}

	matches := h.massEditMatches(req)
	rw.ok(matches)
}

// MassEdit handles POST /regex-patterns/mass-edit: applies the same
// find/replace MassEditPreview previews, persisting the result.
func (h *Handler) MassEdit(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req massEditRequest
	if !bindJSON(rw, r, &req) {
		return
	}

	matches := h.massEditMatches(req)
	for _, m := range matches {
		patterns := h.regex.ChannelPatterns(m.ChannelID)
		if m.Index >= len(patterns) {
			continue
		}
		patterns[m.Index].Pattern = m.After
		if err := h.regex.SetPatterns(m.ChannelID, patterns); err != nil {
			respondEngineError(rw, err)
			return
		}
	}
	rw.ok(matches)
}

// massEditMatches computes, without persisting, every pattern a
// find/replace would change, optionally scoped to req.ChannelIDs.
func (h *Handler) massEditMatches(req massEditRequest) []massEditMatch {
	channelIDs := req.ChannelIDs
	if len(channelIDs) == 0 {
		for _, ch := range h.idx.ListChannels() {
			channelIDs = append(channelIDs, ch.ID)
		}
	}

	var matches []massEditMatch
	for _, channelID := range channelIDs {
		patterns := h.regex.ChannelPatterns(channelID)
		for i, p := range patterns {
			if !strings.Contains(p.Pattern, req.Find) {
				continue
			}
			matches = append(matches, massEditMatch{
				ChannelID: channelID,
				Index:     i,
				Before:    p.Pattern,
				After:     strings.ReplaceAll(p.Pattern, req.Find, req.Replace),
			})
		}
	}
	return matches
}

// TestRegexLive handles POST /test-regex-live: compiles the given
// patterns against a channel's name (or, with no channel_id, against
// every channel name) and reports matching streams without persisting
// anything or touching the Matching Engine's write-back path.
func (h *Handler) TestRegexLive(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req testRegexLiveRequest
	if !bindJSON(rw, r, &req) {
		return
	}
	maxMatches := req.MaxMatches
	if maxMatches <= 0 {
		maxMatches = 100
	}

	channels := h.idx.ListChannels()
	if req.ChannelID != nil {
		ch, ok := h.idx.GetChannel(*req.ChannelID)
		if !ok {
			rw.notFound("channel not found")
			return
		}
		channels = []models.Channel{ch}
	}

	streams := h.idx.ListStreams()

	var matched []testRegexLiveMatch
	for _, ch := range channels {
		for _, pattern := range req.Patterns {
			re, err := h.regex.Compile(pattern, ch.Name)
			if err != nil {
				continue
			}
			for _, stream := range streams {
				if len(matched) >= maxMatches {
					rw.ok(matched)
					return
				}
				if re.MatchString(stream.Name) {
					matched = append(matched, testRegexLiveMatch{
						StreamID: stream.ID,
						Name:     stream.Name,
						Pattern:  pattern,
					})
				}
			}
		}
	}
	rw.ok(matched)
}
