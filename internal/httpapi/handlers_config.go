// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"

	"github.com/streamforge/controller/internal/store"
)

// GetAutomationConfig handles GET /config/automation.
func (h *Handler) GetAutomationConfig(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	rw.ok(h.store.Automation.Get())
}

// PutAutomationConfig handles PUT /config/automation.
func (h *Handler) PutAutomationConfig(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var cfg store.AutomationConfig
	if !bindJSON(rw, r, &cfg) {
		return
	}
	if err := h.store.Automation.Set(cfg); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(cfg)
}

// GetStreamCheckerConfig handles GET /config/stream_checker.
func (h *Handler) GetStreamCheckerConfig(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	rw.ok(h.store.StreamChecker.Get())
}

// PutStreamCheckerConfig handles PUT /config/stream_checker.
func (h *Handler) PutStreamCheckerConfig(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var cfg store.StreamCheckerConfig
	if !bindJSON(rw, r, &cfg) {
		return
	}
	if err := h.store.StreamChecker.Set(cfg); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(cfg)
}

// GetProfileConfig handles GET /config/profile.
func (h *Handler) GetProfileConfig(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	rw.ok(h.store.Profile.Get())
}

// PutProfileConfig handles PUT /config/profile.
func (h *Handler) PutProfileConfig(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)

	var cfg store.ProfileConfig
	if !bindJSON(rw, r, &cfg) {
		return
	}
	if err := h.store.Profile.Set(cfg); err != nil {
		respondEngineError(rw, err)
		return
	}
	rw.ok(cfg)
}
