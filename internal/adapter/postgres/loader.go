// Package postgres copies enriched collisions into a Postgres table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

const tableName = "collision_weather"

var columns = []string{
	"event_id", "merge_key", "temperature", "precipitation", "visibility",
	"weather_desc", "is_rain", "is_snow", "processed_at", "raw",
}

const createTable = `
CREATE TABLE IF NOT EXISTS collision_weather (
    event_id      TEXT        NOT NULL,
    merge_key     TIMESTAMP,
    temperature   DOUBLE PRECISION,
    precipitation DOUBLE PRECISION,
    visibility    DOUBLE PRECISION,
    weather_desc  TEXT,
    is_rain       BOOLEAN     NOT NULL,
    is_snow       BOOLEAN     NOT NULL,
    processed_at  TIMESTAMPTZ NOT NULL,
    raw           JSONB       NOT NULL
)`

// DB is the subset of pgxpool.Pool used by the loader.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Loader implements pipeline.BatchLoader with COPY.
type Loader struct {
	db     DB
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Loader, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	l := NewLoader(pool, logger)
	l.pool = pool
	return l, nil
}

// NewLoader wraps an existing connection.
func NewLoader(db DB, logger *slog.Logger) *Loader {
	return &Loader{db: db, logger: logger}
}

// EnsureSchema creates the target table when it is missing.
func (l *Loader) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create %s: %w", tableName, err)
	}
	return nil
}

func (l *Loader) LoadBatch(ctx context.Context, rows []domain.EnrichedCollision) error {
	values, err := copyRows(rows)
	if err != nil {
		return err
	}
	n, err := l.db.CopyFrom(ctx, pgx.Identifier{tableName}, columns, pgx.CopyFromRows(values))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", tableName, err)
	}
	l.logger.Debug("rows copied", "table", tableName, "rows", n)
	return nil
}

// Close releases the pool, if Connect opened it.
func (l *Loader) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}

func copyRows(rows []domain.EnrichedCollision) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, e := range rows {
		raw, err := json.Marshal(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", e.EventID(), err)
		}

		var mergeKey *time.Time
		if e.HasDate {
			mk := e.MergeKey
			mergeKey = &mk
		}

		var temp, precip, vis *float64
		var desc *string
		if w := e.Weather; w != nil {
			temp, precip, vis, desc = w.Temperature, w.Precipitation, w.Visibility, w.Description
		}

		out[i] = []any{
			e.EventID(), mergeKey, temp, precip, vis,
			desc, e.IsRain, e.IsSnow, e.ProcessedAt, raw,
		}
	}
	return out, nil
}
