package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windforecast/windforecast/internal/app"
	"github.com/windforecast/windforecast/internal/config"
	"github.com/windforecast/windforecast/internal/ingest"
	"github.com/windforecast/windforecast/internal/provider/resilience"
	"github.com/windforecast/windforecast/internal/station"
)

func TestNewLogger_JSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Environment: "production", LogLevel: "warn"}

	logger := app.NewLoggerTo(&buf, cfg, "windforecast-api", "1.0.0")
	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "windforecast-api", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestNewLogger_ConsoleInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Environment: "development", LogLevel: "debug"}

	logger := app.NewLoggerTo(&buf, cfg, "windforecast-worker", "dev")
	logger.Debug().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNewPipeline_WithoutBroker(t *testing.T) {
	cfg := &config.Config{
		AEMET: config.AEMETConfig{
			BaseURL:     "http://127.0.0.1:0",
			HourlyLimit: 72,
			Timezone:    "Europe/Madrid",
		},
	}
	repo := station.NewInMemoryRepository()

	p, err := app.NewPipeline(context.Background(), cfg, repo, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	require.NotNil(t, p.Runner)
	require.NotNil(t, p.Stations)
	assert.Equal(t, 1, p.Providers.Len())
	assert.Equal(t, "aemet", p.Providers.Snapshot()[0].Name)

	_, err = p.Runner.Run(context.Background(), ingest.RunOptions{})
	assert.ErrorIs(t, err, ingest.ErrNoStations)
	assert.EqualValues(t, 1, p.Orchestrator.Stats().Snapshot().FailedRuns)
}

func TestBreakerProbesBeforeNextStation(t *testing.T) {
	assert.Less(t, resilience.DefaultOpenTimeout, ingest.DefaultCooldown)
}
