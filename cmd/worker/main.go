// Package main provides the entrypoint for the windforecast worker: scheduled
// and Pub/Sub triggered ingestion.
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

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/windforecast/windforecast/internal/api/handler"
	"github.com/windforecast/windforecast/internal/api/middleware"
	"github.com/windforecast/windforecast/internal/app"
	"github.com/windforecast/windforecast/internal/config"
	"github.com/windforecast/windforecast/internal/database"
	"github.com/windforecast/windforecast/internal/station"
	"github.com/windforecast/windforecast/internal/telemetry"
	"github.com/windforecast/windforecast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "windforecast-worker"

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
		Msg("starting windforecast worker")

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

	pool, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	pipeline, err := app.NewPipeline(ctx, cfg, station.NewPostgresRepository(pool), log)
	if err != nil {
		return fmt.Errorf("build ingestion pipeline: %w", err)
	}
	defer pipeline.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Schedule.Enabled {
		scheduler := worker.NewScheduler(cfg.Schedule.Cron, cfg.Schedule.Location(), pipeline.Runner, log)
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	} else {
		log.Info().Msg("scheduled ingestion disabled")
	}

	if cfg.PubSub.Enabled() {
		subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Runner:           pipeline.Runner,
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()
		g.Go(func() error {
			if err := subscriber.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("pubsub receive: %w", err)
			}
			return nil
		})
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           healthRouter(pipeline, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down worker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("worker stopped")
	return nil
}

// healthRouter serves liveness and readiness for the platform, plus ingestion
// status for operators.
func healthRouter(pipeline *app.Pipeline, log zerolog.Logger) http.Handler {
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Store:     pipeline.Stations,
		Providers: pipeline.Providers,
		Stats:     pipeline.Orchestrator.Stats(),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.ContentTypeJSON)
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/status", ops.SystemStatus)
	return r
}
