package station

import (
	"context"

	"github.com/windforecast/windforecast/internal/forecast"
)

// Repository defines the interface for station and forecast persistence.
type Repository interface {
	// ListStations returns every registered station ordered by ID.
	ListStations(ctx context.Context) ([]*Station, error)

	// GetStation retrieves a station by ID.
	// Returns ErrStationNotFound if it doesn't exist.
	GetStation(ctx context.Context, id string) (*Station, error)

	// SaveForecast overwrites the stored record for a station.
	SaveForecast(ctx context.Context, stationID string, record forecast.Record) error

	// GetForecast retrieves the stored record for a station.
	// Returns ErrForecastNotFound if ingestion never succeeded for it.
	GetForecast(ctx context.Context, stationID string) (*forecast.Record, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
