package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/cabinprep/internal/api"
	"github.com/kiranshivaraju/cabinprep/internal/api/handler"
	mw "github.com/kiranshivaraju/cabinprep/internal/api/middleware"
	"github.com/kiranshivaraju/cabinprep/internal/config"
	"github.com/kiranshivaraju/cabinprep/internal/session"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Runs the session API used by rehearsal screens. Configuration comes from the environment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig()
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("config loaded", "env", cfg.Server.Env, "backend", cfg.Backend.BaseURL)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	recorder := session.NewBufferRecorder(cfg.Server.MaxMediaBytes)
	orch, err := a.newOrchestrator(recorder, nil)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}
	defer orch.Close()

	router := api.NewRouter(buildDependencies(a, orch, recorder))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func buildDependencies(a *app, orch *session.Orchestrator, recorder *session.BufferRecorder) api.Dependencies {
	sessions := handler.NewSession(orch, recorder, a.cfg.Server.MaxMediaBytes)

	return api.Dependencies{
		Auth:      mw.NewAuth(a.cfg.Server.APIKeyHash),
		RateLimit: mw.NewRateLimit(a.cache, a.cfg.Server.RateLimit),
		Metrics:   a.metrics,

		HealthHandler:  handler.NewHealth(a.backend, a.store, a.cache, a.cfg.Server.HealthCacheTTL),
		MetricsHandler: a.metrics.Handler(),

		ListTargets:    handler.NewListTargetsHandler(a.targets),
		RandomQuestion: handler.NewRandomQuestionHandler(a.targets),

		StartSession: sessions.Start,
		GetSession:   sessions.Get,
		FeedMedia:    sessions.Media,
		StopSession:  sessions.Stop,
		SaveSession:  sessions.Save,
		ResetSession: sessions.Delete,

		ListReports: handler.NewListReportsHandler(a.store),
		GetReport:   handler.NewGetReportHandler(a.store),
		JobStatus:   handler.NewJobStatusHandler(a.backend, a.cache, jobStatusTTL),
	}
}
