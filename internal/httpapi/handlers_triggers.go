// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"
)

// streamCheckingBusy writes a 409 and returns true when the engine is
// already running a global action or has channels queued/in-progress,
// so a second mutating trigger can't race the ongoing one (spec
// §5/§6's stream_checking_mode gate).
func (h *Handler) streamCheckingBusy(rw *responseWriter) bool {
	if !h.sched.StreamCheckingMode() {
		return false
	}
	rw.conflict("stream checking is already in progress")
	return true
}

// RefreshPlaylist handles POST /refresh-playlist: a manual,
// synchronous playlist refresh + match (spec §4.9), outside the
// regular cron/interval cadence.
func (h *Handler) RefreshPlaylist(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	if err := h.sched.RefreshPlaylist(r.Context()); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(h.sched.Status())
}

// DiscoverStreams handles POST /discover-streams: forces a matching
// pass regardless of automation_config.auto_stream_matching.
func (h *Handler) DiscoverStreams(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	if h.streamCheckingBusy(rw) {
		return
	}

	changed, err := h.sched.DiscoverStreams(r.Context())
	if err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(map[string]interface{}{"channels_changed": changed})
}

// GlobalAction handles POST /stream-checker/global-action.
func (h *Handler) GlobalAction(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	if h.streamCheckingBusy(rw) {
		return
	}

	if err := h.sched.TriggerGlobalAction(r.Context()); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(h.sched.Status())
}

// CheckSingleChannel handles POST
// /stream-checker/check-single-channel.
func (h *Handler) CheckSingleChannel(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req checkSingleChannelRequest
	if !bindJSON(rw, r, &req) {
		return
	}
	if _, ok := h.idx.GetChannel(req.ChannelID); !ok {
		rw.notFound("channel not found")
		return
	}
	if h.streamCheckingBusy(rw) {
		return
	}

	h.sched.CheckSingleChannel(req.ChannelID, req.Force)
	rw.ok(h.sched.Status())
}

// TestStreamsWithoutStats handles POST
// /stream-checker/test-streams-without-stats.
func (h *Handler) TestStreamsWithoutStats(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	queued := h.sched.TestStreamsWithoutStats()
	rw.ok(map[string]interface{}{"channels_queued": queued})
}

// RescoreResort handles POST /stream-checker/rescore-resort.
func (h *Handler) RescoreResort(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	if h.streamCheckingBusy(rw) {
		return
	}

	if err := h.sched.RescoreResortAll(r.Context()); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(h.sched.Status())
}

// ApplyAccountLimits handles POST
// /stream-checker/apply-account-limits.
func (h *Handler) ApplyAccountLimits(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	if h.streamCheckingBusy(rw) {
		return
	}

	if err := h.sched.ApplyAccountLimitsToExistingChannels(r.Context()); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(h.sched.Status())
}
