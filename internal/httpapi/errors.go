// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/streamforge/controller/internal/upstream"
	"github.com/streamforge/controller/internal/validation"
)

// respondEngineError maps an error returned by the engine to the
// status code taxonomy of spec §7: ConflictError -> 409, NotFound ->
// 404, UpstreamPermanent/Transient/Auth -> 502, everything else -> 500.
func respondEngineError(rw *responseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, upstream.ErrConflict):
		rw.conflict(err.Error())
	case errors.Is(err, upstream.ErrNotFound):
		rw.notFound(err.Error())
	case errors.Is(err, upstream.ErrPermanent), errors.Is(err, upstream.ErrTransient), errors.Is(err, upstream.ErrAuth):
		rw.upstreamFailure(err)
	default:
		rw.internalError(err.Error())
	}
}

// decodeJSON reads and decodes the request body into dst, responding
// with 400 on malformed JSON. Returns false if it already responded.
func decodeJSON(rw *responseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		rw.badRequest("request body is required")
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.badRequest("malformed request body: " + err.Error())
		return false
	}
	return true
}

// bindJSON decodes the request body and runs struct validation,
// responding and returning false on either failure. Handlers call this
// once at the top instead of repeating decode+validate boilerplate.
func bindJSON(rw *responseWriter, r *http.Request, dst interface{}) bool {
	if !decodeJSON(rw, r, dst) {
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		rw.validationFailed(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
