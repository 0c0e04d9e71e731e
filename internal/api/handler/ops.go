package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/windforecast/windforecast/internal/api/models"
	"github.com/windforecast/windforecast/internal/api/response"
	"github.com/windforecast/windforecast/internal/ingest"
	"github.com/windforecast/windforecast/internal/provider/resilience"
)

const readinessTimeout = 3 * time.Second

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ProviderHealthSource lists upstream provider health.
type ProviderHealthSource interface {
	Snapshot() []resilience.ProviderHealth
}

// RunStatsSource reports ingestion statistics.
type RunStatsSource interface {
	Snapshot() ingest.RunStats
}

// OpsConfig holds dependencies for the ops handler. Every source is optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Store     ReadinessChecker
	Providers ProviderHealthSource
	Stats     RunStatsSource
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready - the station store must answer.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.storeReady(r.Context()); err != nil {
		response.ServiceUnavailable(w, r, "station store unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	})
}

// SystemStatus handles GET /v1/ops/status - store, provider and ingestion status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	store := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
	if err := h.storeReady(r.Context()); err != nil {
		detail := err.Error()
		store.Status = models.HealthStatusFail
		store.Detail = &detail
		status.Status = models.HealthStatusFail
	}
	status.Subsystems = append(status.Subsystems, store)

	if h.cfg.Providers != nil {
		for _, ph := range h.cfg.Providers.Snapshot() {
			ps := providerStatus(ph)
			if ps.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	if h.cfg.Stats != nil {
		status.Ingestion = ingestionStatus(h.cfg.Stats.Snapshot())
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) storeReady(ctx context.Context) error {
	if h.cfg.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return h.cfg.Store.Ready(ctx)
}

func providerStatus(ph resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:      ph.Name,
		Status:        models.HealthStatusOK,
		CircuitState:  ph.CircuitState.String(),
		LastSuccessAt: timestampPtr(ph.LastSuccessAt),
		LastFailureAt: timestampPtr(ph.LastFailureAt),
	}
	switch ph.Level() {
	case resilience.LevelDown:
		ps.Status = models.HealthStatusFail
	case resilience.LevelDegraded:
		ps.Status = models.HealthStatusDegraded
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}

func ingestionStatus(s ingest.RunStats) *models.IngestionStatus {
	out := &models.IngestionStatus{
		Runs:          s.TotalRuns,
		FailedRuns:    s.FailedRuns,
		StationsOK:    s.StationsSuccess,
		StationsFail:  s.StationsFailed,
		StationsSkip:  s.StationsSkipped,
		LastRunID:     s.LastRunID,
		LastRunFailed: s.LastRunError != "",
	}
	out.LastRunAt = timestampPtr(s.LastRunAt)
	return out
}

func timestampPtr(t time.Time) *models.Timestamp {
	if t.IsZero() {
		return nil
	}
	ts := models.Timestamp(t)
	return &ts
}
