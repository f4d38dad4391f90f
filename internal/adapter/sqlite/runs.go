package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one recorded invocation of a batch or weather command.
type Run struct {
	ID         string
	Mode       string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Quality    domain.Quality
	Output     string
	Error      string
}

// RecordRun inserts r, assigning an ID when it has none.
func (s *Store) RecordRun(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	var errMsg *string
	if r.Error != "" {
		errMsg = &r.Error
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, status, started_at, finished_at, total, missing_weather, output, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Status,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
		r.Quality.Total, r.Quality.MissingWeather, r.Output, errMsg,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, status, started_at, finished_at, total, missing_weather, output, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			errMsg            sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Mode, &r.Status, &started, &finished,
			&r.Quality.Total, &r.Quality.MissingWeather, &r.Output, &errMsg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", r.ID, err)
		}
		if r.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at for run %s: %w", r.ID, err)
		}
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
