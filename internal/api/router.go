// Package api provides the HTTP API for windforecast.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"

	"github.com/windforecast/windforecast/internal/api/handler"
	"github.com/windforecast/windforecast/internal/api/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics

	Refresher handler.Refresher
	Forecasts handler.ForecastReader
	Store     handler.ReadinessChecker
	Providers handler.ProviderHealthSource
	Stats     handler.RunStatsSource

	// Operators guards the refresh endpoint. Nil leaves it open.
	Operators middleware.OperatorVerifier

	// RefreshRateLimit defaults to middleware.RefreshRateLimit.
	RefreshRateLimit middleware.RateLimitConfig

	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "windforecast-api"
	}
	refreshLimit := cfg.RefreshRateLimit
	if refreshLimit.RequestLimit <= 0 {
		refreshLimit = middleware.RefreshRateLimit
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Store:     cfg.Store,
		Providers: cfg.Providers,
		Stats:     cfg.Stats,
	})
	forecastHandler := handler.NewForecastHandler(cfg.Refresher, cfg.Forecasts, cfg.Logger)

	operatorAuth := middleware.OperatorAuth(cfg.Operators)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(operatorAuth).Get("/status", opsHandler.SystemStatus)
		})

		// Each refresh spends upstream quota: authenticate, then limit.
		r.With(
			middleware.RateLimitByIP(refreshLimit),
			operatorAuth,
			middleware.RateLimitByOperator(refreshLimit),
			middleware.RequireJSON,
		).Post("/forecasts:refresh", forecastHandler.Refresh)

		r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).
			Get("/stations/{stationId}/forecast", forecastHandler.GetForecast)
	})

	return r
}
