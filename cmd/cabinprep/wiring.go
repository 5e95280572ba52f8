package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/cabinprep/internal/analysis"
	"github.com/kiranshivaraju/cabinprep/internal/backend"
	"github.com/kiranshivaraju/cabinprep/internal/cache"
	"github.com/kiranshivaraju/cabinprep/internal/config"
	"github.com/kiranshivaraju/cabinprep/internal/metrics"
	"github.com/kiranshivaraju/cabinprep/internal/session"
	"github.com/kiranshivaraju/cabinprep/internal/store"
	"github.com/kiranshivaraju/cabinprep/internal/targets"
	"github.com/kiranshivaraju/cabinprep/internal/upload"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

const jobStatusTTL = 30 * time.Minute

// app holds the long-lived components shared by serve and rehearse.
type app struct {
	cfg     *config.Config
	backend *backend.HTTPClient
	store   store.ReportStore
	cache   cache.Cache
	metrics *metrics.Metrics
	targets *targets.Table

	closers []func()
}

// newApp connects the report store and cache selected by cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		backend: backend.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.UploadTimeout),
		metrics: metrics.New(),
		targets: targets.Embedded(),
	}

	if cfg.UsesDatabase() {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")
		a.store = store.NewPostgresStore(pool)
	} else {
		slog.Info("DATABASE_URL not set, keeping reports in memory")
		a.store = store.NewMemoryStore()
	}

	if cfg.UsesRedis() {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisCache.Close() })
		if err := redisCache.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")
		a.cache = redisCache
	} else {
		local := cache.NewLocalCache(time.Minute)
		a.closers = append(a.closers, func() { _ = local.Close() })
		a.cache = local
	}

	return a, nil
}

// newOrchestrator wires the analysis pipeline around recorder.
func (a *app) newOrchestrator(recorder session.Recorder, events session.EventSink) (*session.Orchestrator, error) {
	poller := analysis.NewPoller(a.backend, analysis.PollerConfig{
		InitialDelay:   a.cfg.Poll.InitialDelay,
		Interval:       a.cfg.Poll.Interval,
		Timeout:        a.cfg.Poll.Timeout,
		MaxAttempts:    a.cfg.Poll.MaxAttempts,
		MaxQueryErrors: a.cfg.Poll.MaxQueryErrors,
	}, analysis.WithQueryHook(a.metrics.PollQuery))

	return session.New(session.Dependencies{
		Recorder:   recorder,
		Uploader:   upload.NewClient(a.backend),
		Submitter:  analysis.NewSubmitter(a.backend),
		Poller:     poller,
		Aggregator: analysis.NewAggregator(a.backend),
		Fallback:   analysis.NewFallback(uint64(time.Now().UnixNano())),
		Store:      a.store,
		Targets:    a.targets,
		Metrics:    a.metrics,
		Cache:      a.cache,
		Events:     events,
		Listener:   logTransitions(slog.Default()),
	}, session.Options{
		Tick:         a.cfg.Session.Tick,
		ContentType:  a.cfg.Session.ContentType,
		JobStatusTTL: jobStatusTTL,
	})
}

// logTransitions returns a session listener that logs each state change
// once. Snapshots arrive on a single goroutine, so last needs no lock.
func logTransitions(logger *slog.Logger) func(session.Snapshot) {
	var last models.SessionState
	return func(s session.Snapshot) {
		if s.State == last {
			return
		}
		last = s.State
		logger.Debug("session state changed",
			"session_id", s.ID,
			"state", s.State,
			"progress", s.Progress,
		)
	}
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
