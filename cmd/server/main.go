// Package main is the entrypoint for the DocSense analysis API server.
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

	"github.com/docsense/docsense/internal/ai"
	"github.com/docsense/docsense/internal/api"
	"github.com/docsense/docsense/internal/api/handler"
	mw "github.com/docsense/docsense/internal/api/middleware"
	"github.com/docsense/docsense/internal/cache"
	"github.com/docsense/docsense/internal/config"
	"github.com/docsense/docsense/internal/jobs"
	"github.com/docsense/docsense/internal/mayan"
	"github.com/docsense/docsense/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = 6 * time.Hour
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create the summarization engine and content provider
	engine, err := ai.NewEngine(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI engine: %w", err)
	}
	slog.Info("AI engine initialized", "provider", engine.Name(), "model", cfg.AI.Ollama.Model)

	mayanClient := mayan.NewHTTPClient(cfg.Mayan.BaseURL, cfg.Mayan.APIToken, cfg.Mayan.Timeout)

	// 6. Create store and job service
	pgStore := store.NewPostgresStore(pool)

	jobService := jobs.NewService(pgStore, redisCache, mayanClient, engine, cfg.Jobs, cfg.AI.InferenceTimeout)
	jobService.Start(ctx)

	// 7. Retention sweep for old terminal jobs
	if cfg.Jobs.RetentionDays > 0 {
		go runRetentionSweep(ctx, jobService, cfg.Jobs.RetentionDays)
	}

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:       handler.NewHealthHandler(pgStore, redisCache),
		EngineHealthHandler: handler.NewEngineHealthHandler(engine, cfg.AI.Ollama.Model),
		AnalyzeHandler:      handler.NewAnalyzeHandler(jobService),
		GetJobHandler:       handler.NewGetJobHandler(jobService),
		ListJobsHandler:     handler.NewListJobsHandler(jobService),
		CreateKeyHandler:    handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:     handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:    handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
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

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout. The HTTP server drains first so
	// nothing enqueues into a stopped worker pool.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	jobService.Stop()

	slog.Info("server stopped gracefully")
	return nil
}

// runRetentionSweep periodically deletes terminal jobs older than the
// retention window.
func runRetentionSweep(ctx context.Context, svc *jobs.Service, retentionDays int) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
			deleted, err := svc.CleanupOldJobs(ctx, cutoff)
			if err != nil {
				slog.Error("retention sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("retention sweep removed old jobs", "deleted", deleted, "cutoff", cutoff)
			}
		}
	}
}
