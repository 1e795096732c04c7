package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS weather_lookups (
		id           TEXT PRIMARY KEY,
		session_id   TEXT NOT NULL DEFAULT '',
		city         TEXT NOT NULL,
		units        TEXT NOT NULL,
		outcome      TEXT NOT NULL,
		message      TEXT NOT NULL DEFAULT '',
		status_code  INTEGER NOT NULL DEFAULT 0,
		location     TEXT NOT NULL DEFAULT '',
		country      TEXT NOT NULL DEFAULT '',
		temperature  DOUBLE PRECISION,
		duration_ms  BIGINT NOT NULL,
		requested_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS weather_lookups_requested_at_idx ON weather_lookups (requested_at DESC);
`

// PostgresRepository implements domain.DataRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the lookup table if it does not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to migrate schema: %w", err)
	}
	return nil
}

// SaveLookup persists a lookup record to PostgreSQL
func (r *PostgresRepository) SaveLookup(ctx context.Context, rec domain.LookupRecord) error {
	query := `
		INSERT INTO weather_lookups (
			id, session_id, city, units, outcome, message, status_code,
			location, country, temperature, duration_ms, requested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	// temperature is only meaningful for successful lookups
	var temperature *float64
	if rec.Outcome == domain.OutcomeSuccess {
		temperature = &rec.Temperature
	}

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.SessionID, rec.City, rec.Units.String(), rec.Outcome, rec.Message, rec.StatusCode,
		rec.Location, rec.Country, temperature, rec.Duration.Milliseconds(), rec.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save lookup: %w", err)
	}

	return nil
}

// RecentLookups retrieves the newest lookup records from PostgreSQL
func (r *PostgresRepository) RecentLookups(ctx context.Context, limit int) ([]domain.LookupRecord, error) {
	query := `
		SELECT id, session_id, city, units, outcome, message, status_code,
			   location, country, temperature, duration_ms, requested_at
		FROM weather_lookups
		ORDER BY requested_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query lookups: %w", err)
	}
	defer rows.Close()

	var results []domain.LookupRecord
	for rows.Next() {
		var (
			rec         domain.LookupRecord
			units       string
			temperature *float64
			durationMs  int64
		)
		err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.City, &units, &rec.Outcome, &rec.Message, &rec.StatusCode,
			&rec.Location, &rec.Country, &temperature, &durationMs, &rec.RequestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan lookup row: %w", err)
		}
		if err := rec.Units.UnmarshalText([]byte(units)); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan lookup row: %w", err)
		}
		if temperature != nil {
			rec.Temperature = *temperature
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read lookups: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
