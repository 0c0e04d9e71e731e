package resilience

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/windforecast/windforecast/internal/provider/resilience"

// Fetch is the outcome of one forecast fetch against a provider. Stage names
// the step that failed and is empty on success.
type Fetch struct {
	Provider     string
	Kind         string
	Duration     time.Duration
	Stage        string
	PayloadBytes int
}

// ProviderMetrics records forecast fetches.
type ProviderMetrics struct {
	duration metric.Float64Histogram
	failures metric.Int64Counter
	payload  metric.Int64Histogram
}

// NewProviderMetrics registers the instruments on the global meter provider.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)

	duration, err := meter.Float64Histogram("windforecast.provider.fetch.duration",
		metric.WithDescription("Duration of a forecast fetch including every upstream phase"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch duration histogram: %w", err)
	}
	failures, err := meter.Int64Counter("windforecast.provider.fetch.failures",
		metric.WithDescription("Failed forecast fetches by failing stage"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch failures counter: %w", err)
	}
	payload, err := meter.Int64Histogram("windforecast.provider.payload.size",
		metric.WithDescription("Size of forecast data payloads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("payload size histogram: %w", err)
	}

	return &ProviderMetrics{duration: duration, failures: failures, payload: payload}, nil
}

// RecordFetch records f. A nil receiver is a no-op.
func (m *ProviderMetrics) RecordFetch(ctx context.Context, f Fetch) {
	if m == nil {
		return
	}
	// Cancelled fetches are still counted.
	ctx = context.WithoutCancel(ctx)

	base := []attribute.KeyValue{
		attribute.String("provider.name", f.Provider),
		attribute.String("forecast.kind", f.Kind),
	}
	outcome := "ok"
	if f.Stage != "" {
		outcome = "failed"
		m.failures.Add(ctx, 1, metric.WithAttributes(append(base, attribute.String("fetch.stage", f.Stage))...))
	} else {
		m.payload.Record(ctx, int64(f.PayloadBytes), metric.WithAttributes(base...))
	}
	m.duration.Record(ctx, f.Duration.Seconds(),
		metric.WithAttributes(append(base, attribute.String("fetch.outcome", outcome))...))
}
