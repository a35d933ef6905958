// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamforge/controller/internal/config"
	"github.com/streamforge/controller/internal/logging"
	domainmiddleware "github.com/streamforge/controller/internal/middleware"
)

// NewRouter builds the chi router serving every spec §6 endpoint.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(domainmiddleware.RequestID)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimitRPS))
	r.Use(domainmiddleware.PrometheusMetrics)
	r.Use(requestLoggingMiddleware)
	r.Use(domainmiddleware.Compression)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", h.Status)
	r.Get("/channels", h.ListChannels)
	r.Get("/m3u-accounts", h.ListM3UAccounts)
	r.Get("/dead-streams", h.ListDeadStreams)
	r.Get("/changelog", h.Changelog)

	r.Route("/regex-patterns", func(r chi.Router) {
		r.Get("/", h.GetRegexPatterns)
		r.Post("/", h.AddRegexPattern)
		r.Put("/", h.SetRegexPatterns)
		r.Delete("/{channelID}/{index}", h.DeleteRegexPattern)
		r.Get("/common", h.GetCommonPatterns)
		r.Post("/common", h.SetCommonPatterns)
		r.Post("/bulk-edit", h.BulkEditRegexPatterns)
		r.Post("/mass-edit-preview", h.MassEditPreview)
		r.Post("/mass-edit", h.MassEdit)
	})
	r.Post("/test-regex-live", h.TestRegexLive)

	r.Route("/channel-settings", func(r chi.Router) {
		r.Get("/{id}", h.GetChannelSettings)
		r.Put("/{id}", h.PutChannelSettings)
	})
	r.Route("/group-settings", func(r chi.Router) {
		r.Get("/{id}", h.GetGroupSettings)
		r.Put("/{id}", h.PutGroupSettings)
		r.Post("/bulk-disable-matching", h.BulkDisableGroupMatching)
		r.Post("/bulk-disable-checking", h.BulkDisableGroupChecking)
	})

	r.Post("/refresh-playlist", h.RefreshPlaylist)
	r.Post("/discover-streams", h.DiscoverStreams)

	r.Route("/stream-checker", func(r chi.Router) {
		r.Post("/global-action", h.GlobalAction)
		r.Post("/check-single-channel", h.CheckSingleChannel)
		r.Post("/test-streams-without-stats", h.TestStreamsWithoutStats)
		r.Post("/rescore-resort", h.RescoreResort)
		r.Post("/apply-account-limits", h.ApplyAccountLimits)
		r.Get("/queue", h.GetQueue)
		r.Post("/queue/add", h.AddToQueue)
		r.Post("/queue/clear", h.ClearQueue)
	})

	r.Get("/config/automation", h.GetAutomationConfig)
	r.Put("/config/automation", h.PutAutomationConfig)
	r.Get("/config/stream_checker", h.GetStreamCheckerConfig)
	r.Put("/config/stream_checker", h.PutStreamCheckerConfig)
	r.Get("/config/profile", h.GetProfileConfig)
	r.Put("/config/profile", h.PutProfileConfig)

	return r
}

// Server adapts an http.Server to suture.Service so the supervisor
// tree's api layer owns it the same way the engine and probing layers
// own their own Serve methods.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// NewServer wraps router behind an http.Server configured from cfg.
func NewServer(router http.Handler, cfg config.ServerConfig) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service: it runs the HTTP server until ctx
// is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpServer.Addr).Msg("http control surface listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
