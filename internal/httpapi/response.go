// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package httpapi implements the HTTP Control Surface (spec §6): a
// thin chi-routed JSON façade over the automation engine. All
// business behavior lives in the engine packages (scheduler, store,
// settings, regexstore, queue, deadstream, changelog, udi) — handlers
// here only decode requests, call the engine, and shape responses.
package httpapi

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamforge/controller/internal/logging"
)

// envelope is the standardized response wrapper for every endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type apiError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type meta struct {
	RequestID  string      `json:"request_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	DurationMs int64       `json:"duration_ms,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

type pagination struct {
	Count  int `json:"count"`
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

// Error codes (spec §7).
const (
	codeBadRequest         = "BAD_REQUEST"
	codeValidationFailed   = "VALIDATION_FAILED"
	codeNotFound           = "NOT_FOUND"
	codeConflict           = "CONFLICT"
	codeTooManyRequests    = "TOO_MANY_REQUESTS"
	codeInternalError      = "INTERNAL_ERROR"
	codeUpstreamPermanent  = "UPSTREAM_PERMANENT"
	codeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// responseWriter writes the standardized envelope, tracking duration
// from construction to write for the meta block.
type responseWriter struct {
	w     http.ResponseWriter
	r     *http.Request
	start time.Time
}

func newResponseWriter(w http.ResponseWriter, r *http.Request) *responseWriter {
	return &responseWriter{w: w, r: r, start: time.Now()}
}

func (rw *responseWriter) requestID() string {
	return logging.RequestIDFromContext(rw.r.Context())
}

func (rw *responseWriter) ok(data interface{}) {
	rw.write(http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Meta:    rw.meta(nil),
	})
}

func (rw *responseWriter) okPaginated(data interface{}, p *pagination) {
	rw.write(http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Meta:    rw.meta(p),
	})
}

func (rw *responseWriter) created(data interface{}) {
	rw.write(http.StatusCreated, envelope{
		Success: true,
		Data:    data,
		Meta:    rw.meta(nil),
	})
}

func (rw *responseWriter) noContent() {
	rw.w.WriteHeader(http.StatusNoContent)
}

func (rw *responseWriter) meta(p *pagination) *meta {
	return &meta{
		RequestID:  rw.requestID(),
		Timestamp:  time.Now(),
		DurationMs: time.Since(rw.start).Milliseconds(),
		Pagination: p,
	}
}

func (rw *responseWriter) fail(status int, code, message string) {
	rw.failWithDetails(status, code, message, nil)
}

func (rw *responseWriter) failWithDetails(status int, code, message string, details interface{}) {
	requestID := rw.requestID()
	rw.write(status, envelope{
		Success: false,
		Error: &apiError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
		Meta: &meta{RequestID: requestID, Timestamp: time.Now(), DurationMs: time.Since(rw.start).Milliseconds()},
	})
}

func (rw *responseWriter) badRequest(message string) {
	rw.fail(http.StatusBadRequest, codeBadRequest, message)
}

func (rw *responseWriter) validationFailed(message string, details interface{}) {
	rw.failWithDetails(http.StatusBadRequest, codeValidationFailed, message, details)
}

func (rw *responseWriter) notFound(message string) {
	rw.fail(http.StatusNotFound, codeNotFound, message)
}

func (rw *responseWriter) conflict(message string) {
	rw.fail(http.StatusConflict, codeConflict, message)
}

func (rw *responseWriter) tooManyRequests(message string) {
	rw.fail(http.StatusTooManyRequests, codeTooManyRequests, message)
}

func (rw *responseWriter) internalError(message string) {
	rw.fail(http.StatusInternalServerError, codeInternalError, message)
}

func (rw *responseWriter) upstreamFailure(err error) {
	logging.Error().Err(err).Msg("upstream call failed")
	rw.fail(http.StatusBadGateway, codeUpstreamPermanent, "upstream is unavailable")
}

func (rw *responseWriter) write(status int, body envelope) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode http response")
	}
}
