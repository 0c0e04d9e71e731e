// Package handler provides HTTP handlers for the windforecast API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/windforecast/windforecast/internal/api/middleware"
	"github.com/windforecast/windforecast/internal/api/models"
	"github.com/windforecast/windforecast/internal/api/response"
	"github.com/windforecast/windforecast/internal/forecast"
	"github.com/windforecast/windforecast/internal/ingest"
	"github.com/windforecast/windforecast/internal/station"
	"github.com/windforecast/windforecast/internal/worker"
)

const maxRefreshBodyBytes = 4 << 10

// Refresher runs an ingestion pass.
type Refresher interface {
	Run(ctx context.Context, opts ingest.RunOptions) (*ingest.Summary, error)
}

// ForecastReader returns the stored record for a station.
type ForecastReader interface {
	Forecast(ctx context.Context, stationID string) (*forecast.Record, error)
}

// ForecastHandler handles forecast refresh and read endpoints.
type ForecastHandler struct {
	refresher Refresher
	reader    ForecastReader
	validate  *validator.Validate
	now       func() time.Time
	logger    zerolog.Logger
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(refresher Refresher, reader ForecastReader, logger zerolog.Logger) *ForecastHandler {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	return &ForecastHandler{
		refresher: refresher,
		reader:    reader,
		validate:  v,
		now:       time.Now,
		logger:    logger,
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// Refresh handles POST /v1/forecasts:refresh.
func (h *ForecastHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input models.RefreshRequest
	body := http.MaxBytesReader(w, r.Body, maxRefreshBodyBytes)
	if err := json.NewDecoder(body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(input); err != nil {
		response.ValidationFailed(w, r, err)
		return
	}

	logger := h.logger.With().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("operator_id", middleware.GetOperatorID(r.Context())).
		Str("station_id", input.StationID).
		Logger()

	summary, err := h.refresher.Run(r.Context(), ingest.RunOptions{
		StationID: input.StationID,
		Trigger:   ingest.TriggerManual,
	})
	switch {
	case errors.Is(err, station.ErrStationNotFound):
		response.NotFound(w, r, "Station not found")
		return
	case errors.Is(err, ingest.ErrNoStations):
		response.NotFound(w, r, "No stations found")
		return
	case errors.Is(err, worker.ErrRunInProgress):
		response.Conflict(w, r, "An ingestion run is already in progress")
		return
	case err != nil:
		logger.Error().Err(err).Msg("manual refresh failed")
		response.InternalError(w, r, "Failed to refresh forecasts")
		return
	}

	now := models.Timestamp(h.now())

	if input.StationID == "" {
		response.JSON(w, r, http.StatusOK, models.RunRefreshResponse{
			Status:    models.RefreshStatusCompleted,
			Timestamp: now,
			RunID:     summary.RunID,
			Success:   summary.Success,
			Failed:    toOutcomes(summary.Failed),
			Skipped:   toOutcomes(summary.Skipped),
		})
		return
	}

	switch {
	case len(summary.Skipped) > 0:
		response.MissingConfiguration(w, r, "Missing ine_code or aemet_api_key")
	case len(summary.Failed) > 0:
		logger.Warn().Str("reason", summary.Failed[0].Reason).Msg("manual refresh fetched no data")
		response.UpstreamFailure(w, r, "Failed to fetch forecast")
	default:
		response.JSON(w, r, http.StatusOK, models.StationRefreshResponse{
			Status:    models.RefreshStatusSuccess,
			StationID: input.StationID,
			Timestamp: now,
		})
	}
}

// GetForecast handles GET /v1/stations/{stationId}/forecast.
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationId")

	record, err := h.reader.Forecast(r.Context(), stationID)
	switch {
	case errors.Is(err, station.ErrStationNotFound):
		response.NotFound(w, r, "Station not found")
		return
	case errors.Is(err, station.ErrForecastNotFound):
		response.NotFound(w, r, "No forecast stored for station")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("station_id", stationID).Msg("reading forecast failed")
		response.InternalError(w, r, "Failed to read forecast")
		return
	}

	response.JSON(w, r, http.StatusOK, record)
}

func toOutcomes(in []ingest.Outcome) []models.RefreshOutcome {
	out := make([]models.RefreshOutcome, 0, len(in))
	for _, o := range in {
		out = append(out, models.RefreshOutcome{StationID: o.StationID, Reason: o.Reason})
	}
	return out
}
