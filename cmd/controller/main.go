// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main wires the controller's bootstrap dependencies, starts
// the three-layer supervisor tree (engine, probing, api), and waits
// for an orderly shutdown on SIGINT/SIGTERM (spec §5).
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamforge/controller/internal/analyzer"
	"github.com/streamforge/controller/internal/changelog"
	"github.com/streamforge/controller/internal/config"
	"github.com/streamforge/controller/internal/deadstream"
	"github.com/streamforge/controller/internal/httpapi"
	"github.com/streamforge/controller/internal/limiter"
	"github.com/streamforge/controller/internal/logging"
	"github.com/streamforge/controller/internal/prober"
	"github.com/streamforge/controller/internal/probestore"
	"github.com/streamforge/controller/internal/profileconfig"
	"github.com/streamforge/controller/internal/queue"
	"github.com/streamforge/controller/internal/regexstore"
	"github.com/streamforge/controller/internal/scheduler"
	"github.com/streamforge/controller/internal/settings"
	"github.com/streamforge/controller/internal/store"
	"github.com/streamforge/controller/internal/supervisor"
	"github.com/streamforge/controller/internal/udi"
	"github.com/streamforge/controller/internal/updatetracker"
	"github.com/streamforge/controller/internal/upstream"
	"github.com/streamforge/controller/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.Info().Msg("starting streamforge controller")

	dir := cfg.Store.Dir
	if dir == "" {
		dir = "./data"
	}

	validate := validation.GetValidator()

	storeBundle, err := store.Open(dir, validate)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open config store")
	}
	settingsStore, err := settings.Open(dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open settings store")
	}
	regexStore, err := regexstore.Open(dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open regex pattern store")
	}
	updates, err := updatetracker.Open(dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open update tracker")
	}
	dead, err := deadstream.Open(dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open dead-stream tracker")
	}
	probes, err := probestore.Open(dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open probe result store")
	}
	cl, err := changelog.Open(dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open changelog")
	}
	profiles := profileconfig.New(storeBundle.Profile)

	baseClient := upstream.NewClient(cfg.Upstream)
	upstreamClient := upstream.NewCircuitBreakerClient(baseClient)

	idx := udi.New(upstreamClient)

	staleThreshold := cfg.Engine.StaleTokenThreshold
	if staleThreshold <= 0 {
		staleThreshold = 2 * time.Hour
	}
	concurrencyLimiter := limiter.New(staleThreshold)

	mediaAnalyzer := analyzer.New(cfg.Analyzer)

	runner := prober.NewRunner(
		idx,
		mediaAnalyzer,
		concurrencyLimiter,
		probes,
		dead,
		updates,
		cl,
		settingsStore,
		profiles,
		upstreamClient,
		storeBundle,
		cfg.Analyzer,
	)

	workers := cfg.Engine.GlobalConcurrentLimit
	if workers <= 0 {
		workers = 4
	}
	q := queue.New()
	pool := prober.NewPool(q, runner, workers)

	sched := scheduler.New(idx, upstreamClient, upstreamClient, storeBundle, regexStore, settingsStore, q, updates, dead, probes, cl)

	handler := httpapi.NewHandler(idx, sched, storeBundle, settingsStore, regexStore, dead, cl, q)
	router := httpapi.NewRouter(handler, cfg.Server)
	server := httpapi.NewServer(router, cfg.Server)

	treeConfig := supervisor.DefaultTreeConfig()
	tree, err := supervisor.NewSupervisorTree(slog.Default(), treeConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	tree.AddEngineService(sched)
	tree.AddProbingService(pool)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", cfg.Server.Addr).Msg("supervisor tree starting")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
		}
	}

	logging.Info().Msg("streamforge controller stopped")
}
