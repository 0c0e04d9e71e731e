// Package main provides the entrypoint for the windforecast API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/windforecast/windforecast/internal/api"
	"github.com/windforecast/windforecast/internal/api/middleware"
	"github.com/windforecast/windforecast/internal/app"
	"github.com/windforecast/windforecast/internal/auth"
	"github.com/windforecast/windforecast/internal/config"
	"github.com/windforecast/windforecast/internal/database"
	"github.com/windforecast/windforecast/internal/station"
	"github.com/windforecast/windforecast/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "windforecast-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := app.NewLogger(cfg, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting windforecast API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(cfg, serviceName, Version))
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	pipeline, err := app.NewPipeline(ctx, cfg, station.NewPostgresRepository(pool), log)
	if err != nil {
		return fmt.Errorf("build ingestion pipeline: %w", err)
	}
	defer pipeline.Close()

	var operators middleware.OperatorVerifier
	if cfg.Auth.OperatorJWTSecret != "" {
		tokens, err := auth.NewTokenService(auth.TokenConfig{SigningKey: cfg.Auth.OperatorJWTSecret})
		if err != nil {
			return err
		}
		operators = tokens
	} else {
		log.Warn().Msg("OPERATOR_JWT_SECRET not set - refresh endpoint is unauthenticated")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:          Version,
		BuildTime:        BuildTime,
		ServiceName:      serviceName,
		Logger:           log,
		Metrics:          metrics,
		Refresher:        pipeline.Runner,
		Forecasts:        pipeline.Stations,
		Store:            pipeline.Stations,
		Providers:        pipeline.Providers,
		Stats:            pipeline.Orchestrator.Stats(),
		Operators:        operators,
		RefreshRateLimit: middleware.PerMinute(cfg.RateLimit.RequestsPerMinute),
		RequireTLS:       cfg.IsProduction(),
	})

	// A full refresh is answered only when the run finishes.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Ingest.RunTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
