package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/windforecast/windforecast/internal/forecast"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL station repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListStations returns every registered station ordered by ID.
func (r *PostgresRepository) ListStations(ctx context.Context) ([]*Station, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(ine_code, ''), COALESCE(aemet_api_key, '')
		FROM weather_stations
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var stations []*Station
	for rows.Next() {
		var s Station
		if err := rows.Scan(&s.ID, &s.Name, &s.Credential.MunicipalityCode, &s.Credential.APIKey); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		stations = append(stations, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stations, nil
}

// GetStation retrieves a station by ID.
func (r *PostgresRepository) GetStation(ctx context.Context, id string) (*Station, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(ine_code, ''), COALESCE(aemet_api_key, '')
		FROM weather_stations
		WHERE id = $1
	`

	var s Station
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.Name, &s.Credential.MunicipalityCode, &s.Credential.APIKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, err
	}

	return &s, nil
}

// SaveForecast overwrites the stored record for a station.
func (r *PostgresRepository) SaveForecast(ctx context.Context, stationID string, record forecast.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode forecast record: %w", err)
	}

	query := `
		INSERT INTO station_forecasts (station_id, record, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (station_id) DO UPDATE
		SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.pool.Exec(ctx, query, stationID, payload, record.UpdatedAt().UTC()); err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	return nil
}

// GetForecast retrieves the stored record for a station.
func (r *PostgresRepository) GetForecast(ctx context.Context, stationID string) (*forecast.Record, error) {
	query := `SELECT record FROM station_forecasts WHERE station_id = $1`

	var payload []byte
	if err := r.pool.QueryRow(ctx, query, stationID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForecastNotFound
		}
		return nil, err
	}

	var record forecast.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode forecast record: %w", err)
	}
	return &record, nil
}

// Ping checks the connection pool.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.pool.Ping(ctx)
}
