// Package app assembles the ingestion pipeline shared by the api and worker
// binaries.
package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/windforecast/windforecast/internal/config"
	"github.com/windforecast/windforecast/internal/forecast/aemet"
	"github.com/windforecast/windforecast/internal/ingest"
	"github.com/windforecast/windforecast/internal/notify"
	"github.com/windforecast/windforecast/internal/provider/resilience"
	"github.com/windforecast/windforecast/internal/station"
	"github.com/windforecast/windforecast/internal/worker"
)

const mqttConnectTimeout = 10 * time.Second

// NewLogger builds the root logger for a binary. Development gets console
// output, everything else JSON.
func NewLogger(cfg *config.Config, service, version string) zerolog.Logger {
	return newLogger(os.Stdout, cfg, service, version)
}

func newLogger(out io.Writer, cfg *config.Config, service, version string) zerolog.Logger {
	if cfg.Environment == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(cfg.Level()).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// Pipeline is the wired ingestion stack.
type Pipeline struct {
	Orchestrator *ingest.Orchestrator
	Runner       *worker.Runner
	Stations     *station.Service
	Providers    *resilience.Registry

	publisher *notify.Publisher
}

// NewPipeline wires the AEMET client, the optional MQTT notifier and the
// orchestrator over repo. Close releases the broker connection.
func NewPipeline(ctx context.Context, cfg *config.Config, repo station.Repository, logger zerolog.Logger) (*Pipeline, error) {
	providerMetrics, err := resilience.NewProviderMetrics()
	if err != nil {
		return nil, err
	}
	ingestMetrics, err := ingest.NewMetrics()
	if err != nil {
		return nil, err
	}

	registry := resilience.NewRegistry()
	httpClient := resilience.NewClient(resilience.ClientConfig{
		Name:             aemet.ProviderName,
		Timeout:          cfg.AEMET.Timeout,
		MaxRetries:       uint64(cfg.AEMET.MaxRetries), //nolint:gosec // bounded by config validation
		RateLimitWait:    cfg.AEMET.RateLimitWait,
		NetworkErrorWait: cfg.AEMET.NetworkErrorWait,
		Registry:         registry,
		Logger:           logger,
	})

	fetcher := aemet.NewClient(aemet.ClientConfig{
		BaseURL:     cfg.AEMET.BaseURL,
		HTTPClient:  httpClient,
		Metrics:     providerMetrics,
		Location:    cfg.AEMET.Location(),
		HourlyLimit: cfg.AEMET.HourlyLimit,
		Logger:      logger.With().Str("component", "aemet").Logger(),
	})

	p := &Pipeline{
		Stations:  station.NewService(repo),
		Providers: registry,
	}

	orchCfg := ingest.Config{
		Fetcher:  fetcher,
		Store:    repo,
		Cooldown: cfg.Ingest.Cooldown,
		Metrics:  ingestMetrics,
		Logger:   logger.With().Str("component", "ingest").Logger(),
	}

	if cfg.MQTT.Enabled() {
		p.publisher = notify.NewPublisher(notify.Config{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Logger:      logger.With().Str("component", "mqtt").Logger(),
		})

		connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err := p.publisher.Connect(connectCtx)
		cancel()
		if err != nil {
			// paho keeps retrying in the background; updates fail until it connects.
			logger.Warn().Err(err).Str("broker", cfg.MQTT.BrokerURL).Msg("mqtt broker not reachable yet")
		}
		orchCfg.Notifier = p.publisher
	}

	p.Orchestrator = ingest.NewOrchestrator(orchCfg)
	p.Runner = worker.NewRunner(p.Orchestrator, cfg.Ingest.RunTimeout, logger)
	return p, nil
}

// Close disconnects the notifier, if any.
func (p *Pipeline) Close() {
	if p.publisher != nil {
		p.publisher.Disconnect()
	}
}
