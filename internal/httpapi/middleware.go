// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/streamforge/controller/internal/logging"
	"github.com/streamforge/controller/internal/metrics"
)

// corsMiddleware builds a go-chi/cors handler scoped to the
// configured allowed origins (spec §6; no Non-goal excludes CORS).
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// rateLimitMiddleware rate-limits requests per client IP using
// go-chi/httprate, so a misbehaving UI or script cannot flood manual
// triggers (spec §6's manual-trigger endpoints are the main concern;
// GETs are cheap reads over in-memory state). requestsPerSecond mirrors
// config.ServerConfig.RateLimitRPS.
func rateLimitMiddleware(requestsPerSecond int) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 20
	}
	return httprate.Limit(
		requestsPerSecond,
		time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w, r)
			metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
			rw.tooManyRequests("rate limit exceeded")
		}),
	)
}

// requestLoggingMiddleware logs one structured line per request after
// it completes, the way the teacher logs every HTTP request.
func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", logging.RequestIDFromContext(r.Context())).
			Msg("http request")
	})
}
