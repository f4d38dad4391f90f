// Package sqlite persists downloaded station-months and run history in a
// local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed width so text ordering in SQL matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements eccc.MonthStore and the run log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; the weather builder calls in from several goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetMonth returns the cached payload for m, if any.
func (s *Store) GetMonth(ctx context.Context, m domain.StationMonth) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM station_months WHERE station_id = ? AND year = ? AND month = ?`,
		m.Station.ID, m.Year, m.Month,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get station month %s: %w", m, err)
	}
	return payload, true, nil
}

// PutMonth stores payload for m, replacing any earlier copy.
func (s *Store) PutMonth(ctx context.Context, m domain.StationMonth, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO station_months (station_id, year, month, payload, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (station_id, year, month) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		m.Station.ID, m.Year, m.Month, payload, domain.Now().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("put station month %s: %w", m, err)
	}
	return nil
}

// CachedMonths returns how many station-months are stored.
func (s *Store) CachedMonths(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM station_months`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count station months: %w", err)
	}
	return n, nil
}
