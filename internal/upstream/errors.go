// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package upstream

import "errors"

// Typed error taxonomy for upstream calls (spec §7). Components test
// against these with errors.Is; the HTTP Control Surface maps them to
// status codes.
var (
	// ErrTransient covers network errors, 5xx, and timeouts. Retried
	// with backoff by the client before being returned.
	ErrTransient = errors.New("upstream: transient error")

	// ErrAuth indicates the access token was rejected. The client
	// retries once after a token refresh before surfacing this.
	ErrAuth = errors.New("upstream: authentication failed")

	// ErrNotFound indicates the requested entity does not exist upstream.
	ErrNotFound = errors.New("upstream: not found")

	// ErrConflict indicates a write was rejected due to a conflicting
	// upstream state.
	ErrConflict = errors.New("upstream: conflict")

	// ErrPermanent indicates retries were exhausted or the upstream
	// returned a non-retryable status (a 4xx other than 401/403/404/409/429;
	// every 5xx is transient).
	ErrPermanent = errors.New("upstream: permanent failure")
)

// IsTransient reports whether err wraps ErrTransient.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsAuth reports whether err wraps ErrAuth.
func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsPermanent reports whether err wraps ErrPermanent.
func IsPermanent(err error) bool { return errors.Is(err, ErrPermanent) }
