// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"
	"strconv"
	"time"
)

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	rw.ok(h.sched.Status())
}

// ListChannels handles GET /channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	channels := h.idx.ListChannels()
	rw.okPaginated(channels, &pagination{Count: len(channels)})
}

// ListM3UAccounts handles GET /m3u-accounts.
func (h *Handler) ListM3UAccounts(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	accounts := h.idx.ListAccounts()
	rw.okPaginated(accounts, &pagination{Count: len(accounts)})
}

// ListDeadStreams handles GET /dead-streams.
func (h *Handler) ListDeadStreams(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	records := h.dead.List()
	rw.okPaginated(records, &pagination{Count: len(records)})
}

// Changelog handles GET /changelog?days=N (default 7).
func (h *Handler) Changelog(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			rw.badRequest("days must be a positive integer")
			return
		}
		days = parsed
	}

	entries := h.changelog.Since(days, time.Now())
	rw.okPaginated(entries, &pagination{Count: len(entries)})
}
