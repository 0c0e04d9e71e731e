// Package ingest runs forecast ingestion over the registered stations.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/windforecast/windforecast/internal/forecast"
	"github.com/windforecast/windforecast/internal/station"
	"github.com/windforecast/windforecast/internal/telemetry"
)

// ErrNoStations is returned when a run finds no stations to process.
var ErrNoStations = errors.New("no stations found")

// Outcome reasons.
const (
	ReasonMissingConfiguration = "missing configuration"
	ReasonNoForecastData       = "no forecast data returned"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
	TriggerPubSub   Trigger = "pubsub"
)

// Fetcher retrieves normalized forecasts for one municipality.
type Fetcher interface {
	FetchHourly(ctx context.Context, municipalityCode, apiKey string) forecast.Result[[]forecast.HourlyPoint]
	FetchDaily(ctx context.Context, municipalityCode, apiKey string) forecast.Result[[]forecast.DailySummary]
}

// Store is the subset of station.Repository the orchestrator needs.
type Store interface {
	ListStations(ctx context.Context) ([]*station.Station, error)
	GetStation(ctx context.Context, id string) (*station.Station, error)
	SaveForecast(ctx context.Context, stationID string, record forecast.Record) error
}

// Notifier is told about every saved record.
type Notifier interface {
	ForecastUpdated(ctx context.Context, stationID string, record forecast.Record) error
}

// RunOptions selects what a run processes.
type RunOptions struct {
	// StationID limits the run to one station. Empty means all stations.
	StationID string
	Trigger   Trigger
}

// Outcome is a station that did not succeed and why.
type Outcome struct {
	StationID string `json:"stationId"`
	Reason    string `json:"reason"`
}

// Summary is the complete result of a run.
type Summary struct {
	RunID      string    `json:"runId"`
	Trigger    Trigger   `json:"trigger"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Success    []string  `json:"success"`
	Failed     []Outcome `json:"failed"`
	Skipped    []Outcome `json:"skipped"`
}

// Config holds dependencies for an Orchestrator.
type Config struct {
	Fetcher Fetcher
	Store   Store

	// Notifier is optional.
	Notifier Notifier

	// Clock defaults to SystemClock.
	Clock Clock

	// Cooldown is the gap between one station's last request and the next
	// station's first. Default: DefaultCooldown.
	// Negative disables spacing.
	Cooldown time.Duration

	// Metrics is optional.
	Metrics *Metrics

	Logger zerolog.Logger
}

// Orchestrator runs ingestion sequentially over stations.
type Orchestrator struct {
	fetcher  Fetcher
	store    Store
	notifier Notifier
	clock    Clock
	cooldown time.Duration
	metrics  *Metrics
	stats    *Stats
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewOrchestrator creates a new ingestion orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}

	return &Orchestrator{
		fetcher:  cfg.Fetcher,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		clock:    clock,
		cooldown: cooldown,
		metrics:  cfg.Metrics,
		stats:    &Stats{},
		tracer:   telemetry.Tracer(instrumentationName),
		logger:   cfg.Logger,
	}
}

// Stats returns cumulative run statistics.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// Run ingests forecasts for the selected stations.
//
// Per-station failures are recorded in the summary. A returned error is
// fatal to the run: the station lookup failed, no stations exist, a record
// could not be saved, or ctx ended. When stations were processed before the
// error, the partial summary is returned with it.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (_ *Summary, err error) {
	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}

	summary := &Summary{
		RunID:     "run_" + uuid.New().String()[:22],
		Trigger:   opts.Trigger,
		StartedAt: o.clock.Now(),
		Success:   []string{},
		Failed:    []Outcome{},
		Skipped:   []Outcome{},
	}

	ctx, span := o.tracer.Start(ctx, "ingest.Run", trace.WithAttributes(
		attribute.String("ingest.run_id", summary.RunID),
		attribute.String("ingest.trigger", string(opts.Trigger)),
	))
	defer span.End()

	logger := o.logger.With().
		Str("run_id", summary.RunID).
		Str("trigger", string(opts.Trigger)).
		Logger()

	defer func() {
		summary.FinishedAt = o.clock.Now()
		duration := summary.FinishedAt.Sub(summary.StartedAt)
		o.metrics.recordRun(ctx, opts.Trigger, duration, err != nil)
		o.stats.record(summary, err)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Msg("ingestion run aborted")
			return
		}
		logger.Info().
			Dur("duration", duration).
			Int("success", len(summary.Success)).
			Int("failed", len(summary.Failed)).
			Int("skipped", len(summary.Skipped)).
			Msg("ingestion run completed")
	}()

	stations, err := o.selectStations(ctx, opts.StationID)
	if err != nil {
		return nil, err
	}
	if len(stations) == 0 {
		return nil, ErrNoStations
	}

	logger.Info().Int("stations", len(stations)).Msg("starting ingestion run")

	slots := NewCooldown(o.cooldown, o.clock)
	for _, st := range stations {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		stationLog := logger.With().Str("station_id", st.ID).Logger()

		if !st.Credential.Complete() {
			summary.Skipped = append(summary.Skipped, Outcome{StationID: st.ID, Reason: ReasonMissingConfiguration})
			o.metrics.recordStation(ctx, "skipped")
			stationLog.Warn().Msg("station skipped: missing configuration")
			continue
		}

		if err := slots.AwaitSlot(ctx); err != nil {
			return summary, err
		}

		record, reason := o.ingestStation(ctx, st, stationLog)
		slots.Release()
		if reason != "" {
			summary.Failed = append(summary.Failed, Outcome{StationID: st.ID, Reason: reason})
			o.metrics.recordStation(ctx, "failed")
			stationLog.Warn().Str("reason", reason).Msg("station ingestion failed")
			continue
		}

		if err := o.store.SaveForecast(ctx, st.ID, record); err != nil {
			return summary, fmt.Errorf("saving forecast for station %s: %w", st.ID, err)
		}

		summary.Success = append(summary.Success, st.ID)
		o.metrics.recordStation(ctx, "success")
		stationLog.Info().
			Int("hourly", len(record.Data.Hourly)).
			Int("weekly", len(record.Data.Weekly)).
			Msg("forecast saved")

		o.notify(ctx, st.ID, record, stationLog)
	}

	return summary, nil
}

func (o *Orchestrator) selectStations(ctx context.Context, stationID string) ([]*station.Station, error) {
	if stationID == "" {
		stations, err := o.store.ListStations(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing stations: %w", err)
		}
		return stations, nil
	}

	st, err := o.store.GetStation(ctx, stationID)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return nil, station.ErrStationNotFound
		}
		return nil, fmt.Errorf("loading station %s: %w", stationID, err)
	}
	return []*station.Station{st}, nil
}

// ingestStation fetches both kinds and merges whichever returned data. A
// non-empty reason means the station failed; a panic becomes that reason.
func (o *Orchestrator) ingestStation(ctx context.Context, st *station.Station, logger zerolog.Logger) (record forecast.Record, reason string) {
	ctx, span := o.tracer.Start(ctx, "ingest.Station", trace.WithAttributes(
		attribute.String("station.id", st.ID),
		attribute.String("station.ine_code", st.Credential.MunicipalityCode),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			reason = fmt.Sprintf("panic: %v", r)
			span.SetStatus(codes.Error, reason)
		}
	}()

	code, key := st.Credential.MunicipalityCode, st.Credential.APIKey

	hourly := o.fetcher.FetchHourly(ctx, code, key)
	daily := o.fetcher.FetchDaily(ctx, code, key)

	points, hourlyOK := hourly.Value()
	hourlyOK = hourlyOK && len(points) > 0
	days, dailyOK := daily.Value()
	dailyOK = dailyOK && len(days) > 0

	if !hourlyOK && !dailyOK {
		logger.Debug().
			Str("hourly_reason", hourly.Reason()).
			Str("daily_reason", daily.Reason()).
			Msg("no forecast kind returned data")
		span.SetStatus(codes.Error, ReasonNoForecastData)
		return forecast.Record{}, ReasonNoForecastData
	}

	if !hourlyOK {
		points = nil
		logger.Warn().Str("reason", hourly.Reason()).Msg("hourly forecast unavailable, saving daily only")
	}
	if !dailyOK {
		days = nil
		logger.Warn().Str("reason", daily.Reason()).Msg("daily forecast unavailable, saving hourly only")
	}

	return forecast.NewRecord(o.clock.Now(), points, days), ""
}

func (o *Orchestrator) notify(ctx context.Context, stationID string, record forecast.Record, logger zerolog.Logger) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.ForecastUpdated(ctx, stationID, record); err != nil {
		logger.Warn().Err(err).Msg("forecast update notification failed")
	}
}
