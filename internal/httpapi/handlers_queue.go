// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"
	"time"
)

// GetQueue handles GET /stream-checker/queue.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	entries := h.queue.Snapshot()
	rw.okPaginated(entries, &pagination{Count: len(entries)})
}

// AddToQueue handles POST /stream-checker/queue/add: a manual,
// operator-initiated enqueue at the manual-trigger priority tier
// (spec §4.5).
func (h *Handler) AddToQueue(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var req queueAddRequest
	if !bindJSON(rw, r, &req) {
		return
	}

	now := time.Now()
	for _, channelID := range req.ChannelIDs {
		if _, ok := h.idx.GetChannel(channelID); !ok {
			continue
		}
		priority := req.Priority
		if priority <= 0 {
			priority = 5
		}
		h.queue.Enqueue(channelID, priority, false, now)
	}
	rw.ok(h.queue.Snapshot())
}

// ClearQueue handles POST /stream-checker/queue/clear.
func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	h.queue.Clear()
	rw.ok(map[string]bool{"cleared": true})
}
