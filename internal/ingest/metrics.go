package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/windforecast/windforecast/internal/telemetry"
)

const instrumentationName = "github.com/windforecast/windforecast/internal/ingest"

// Metrics holds the ingestion instruments.
type Metrics struct {
	runDuration     metric.Float64Histogram
	runTotal        metric.Int64Counter
	stationOutcomes metric.Int64Counter
}

// NewMetrics creates the ingestion instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := telemetry.Meter(instrumentationName)

	runDuration, err := meter.Float64Histogram(
		"ingest.run.duration",
		metric.WithDescription("Duration of ingestion runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runTotal, err := meter.Int64Counter(
		"ingest.run.total",
		metric.WithDescription("Total number of ingestion runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	stationOutcomes, err := meter.Int64Counter(
		"ingest.station.outcomes",
		metric.WithDescription("Per-station ingestion outcomes"),
		metric.WithUnit("{station}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runDuration:     runDuration,
		runTotal:        runTotal,
		stationOutcomes: stationOutcomes,
	}, nil
}

func (m *Metrics) recordRun(ctx context.Context, trigger Trigger, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("ingest.trigger", string(trigger)),
		attribute.Bool("error", failed),
	)
	ctx = context.WithoutCancel(ctx)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
	m.runTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) recordStation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.stationOutcomes.Add(context.WithoutCancel(ctx), 1,
		metric.WithAttributes(attribute.String("ingest.outcome", outcome)))
}
