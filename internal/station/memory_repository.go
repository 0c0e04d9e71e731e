package station

import (
	"context"
	"sort"
	"sync"

	"github.com/windforecast/windforecast/internal/forecast"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local runs. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	stations  map[string]*Station
	forecasts map[string]forecast.Record
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a new in-memory repository seeded with stations.
func NewInMemoryRepository(stations ...*Station) *InMemoryRepository {
	r := &InMemoryRepository{
		stations:  make(map[string]*Station),
		forecasts: make(map[string]forecast.Record),
	}
	for _, s := range stations {
		r.PutStation(s)
	}
	return r
}

// PutStation registers or replaces a station.
func (r *InMemoryRepository) PutStation(s *Station) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *s
	r.stations[s.ID] = &cpy
}

// ListStations returns every registered station ordered by ID.
func (r *InMemoryRepository) ListStations(_ context.Context) ([]*Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Station, 0, len(r.stations))
	for _, s := range r.stations {
		cpy := *s
		out = append(out, &cpy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetStation retrieves a station by ID.
func (r *InMemoryRepository) GetStation(_ context.Context, id string) (*Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stations[id]
	if !ok {
		return nil, ErrStationNotFound
	}
	cpy := *s
	return &cpy, nil
}

// SaveForecast overwrites the stored record for a station.
func (r *InMemoryRepository) SaveForecast(_ context.Context, stationID string, record forecast.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.forecasts[stationID] = record
	return nil
}

// GetForecast retrieves the stored record for a station.
func (r *InMemoryRepository) GetForecast(_ context.Context, stationID string) (*forecast.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.forecasts[stationID]
	if !ok {
		return nil, ErrForecastNotFound
	}
	return &record, nil
}

// Ping always succeeds.
func (r *InMemoryRepository) Ping(_ context.Context) error {
	return nil
}
