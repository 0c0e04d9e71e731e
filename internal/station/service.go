package station

import (
	"context"
	"errors"

	"github.com/windforecast/windforecast/internal/forecast"
)

// Service provides read access to stations and their stored forecasts.
type Service struct {
	repo Repository
}

// NewService creates a new station service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Stations returns every station, or only the one matching id when id is set.
func (s *Service) Stations(ctx context.Context, id string) ([]*Station, error) {
	if id == "" {
		return s.repo.ListStations(ctx)
	}
	st, err := s.repo.GetStation(ctx, id)
	if err != nil {
		return nil, err
	}
	return []*Station{st}, nil
}

// Forecast returns the stored record for a station. A missing station is
// reported as ErrStationNotFound, a station without a record as
// ErrForecastNotFound.
func (s *Service) Forecast(ctx context.Context, stationID string) (*forecast.Record, error) {
	if _, err := s.repo.GetStation(ctx, stationID); err != nil {
		return nil, err
	}
	record, err := s.repo.GetForecast(ctx, stationID)
	if err != nil {
		if errors.Is(err, ErrForecastNotFound) {
			return nil, ErrForecastNotFound
		}
		return nil, err
	}
	return record, nil
}

// Ready reports whether the underlying store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
