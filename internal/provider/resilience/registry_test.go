package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windforecast/windforecast/internal/provider/resilience"
)

func registered(t *testing.T, registry *resilience.Registry, names ...string) {
	t.Helper()
	for _, name := range names {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		client := resilience.NewClient(cfg)
		require.Equal(t, name, client.Name())
	}
}

func TestRegistry_RegisterOnConstruction(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(t, registry, "aemet")

	assert.Equal(t, 1, registry.Len())

	health, ok := registry.Health("aemet")
	require.True(t, ok)
	assert.Equal(t, "aemet", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.LevelUp, health.Level())
	assert.Zero(t, health.Calls)
	assert.True(t, health.LastSuccessAt.IsZero())
	assert.True(t, health.LastFailureAt.IsZero())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(t, registry, "aemet")

	registry.Unregister("aemet")

	assert.Equal(t, 0, registry.Len())
	_, ok := registry.Health("aemet")
	assert.False(t, ok)
}

func TestRegistry_FailureStreak(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(t, registry, "aemet")

	registry.Record("aemet", nil)
	registry.Record("aemet", errors.New("unexpected status code: 500"))
	registry.Record("aemet", errors.New("unexpected status code: 404"))

	health, _ := registry.Health("aemet")
	assert.EqualValues(t, 3, health.Calls)
	assert.EqualValues(t, 2, health.Failures)
	assert.EqualValues(t, 2, health.ConsecutiveFailures)
	assert.Equal(t, "unexpected status code: 404", health.LastError)
	assert.WithinDuration(t, time.Now(), health.LastFailureAt, time.Second)
	assert.Equal(t, resilience.LevelDegraded, health.Level())

	registry.Record("aemet", nil)

	health, _ = registry.Health("aemet")
	assert.EqualValues(t, 0, health.ConsecutiveFailures)
	assert.EqualValues(t, 2, health.Failures)
	assert.Equal(t, resilience.LevelUp, health.Level())
	// The last error stays visible after recovery.
	assert.Equal(t, "unexpected status code: 404", health.LastError)
}

func TestRegistry_UnknownProviderIsIgnored(t *testing.T) {
	registry := resilience.NewRegistry()

	assert.NotPanics(t, func() {
		registry.Record("missing", nil)
		registry.Record("missing", assert.AnError)
	})
	_, ok := registry.Health("missing")
	assert.False(t, ok)
}

func TestRegistry_SnapshotSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(t, registry, "c-provider", "a-provider", "b-provider")

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "a-provider", snapshot[0].Name)
	assert.Equal(t, "b-provider", snapshot[1].Name)
	assert.Equal(t, "c-provider", snapshot[2].Name)
}

func TestProviderHealth_Level(t *testing.T) {
	tests := []struct {
		name   string
		health resilience.ProviderHealth
		want   resilience.Level
	}{
		{"closed", resilience.ProviderHealth{CircuitState: gobreaker.StateClosed}, resilience.LevelUp},
		{"closed with streak", resilience.ProviderHealth{CircuitState: gobreaker.StateClosed, ConsecutiveFailures: 1}, resilience.LevelDegraded},
		{"half-open", resilience.ProviderHealth{CircuitState: gobreaker.StateHalfOpen}, resilience.LevelDegraded},
		{"open", resilience.ProviderHealth{CircuitState: gobreaker.StateOpen, ConsecutiveFailures: 3}, resilience.LevelDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.health.Level())
		})
	}
}
