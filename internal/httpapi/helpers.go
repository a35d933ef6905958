// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// parseURLInt64 reads and parses a chi path parameter as int64,
// responding with 400 and returning false on failure.
func parseURLInt64(rw *responseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		rw.badRequest(param + " must be an integer")
		return 0, false
	}
	return v, true
}

// parseQueryInt64 reads and parses a required query parameter as
// int64, responding with 400 and returning false on failure.
func parseQueryInt64(rw *responseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		rw.badRequest(name + " is required")
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		rw.badRequest(name + " must be an integer")
		return 0, false
	}
	return v, true
}
