// Package weather assembles the hourly, gap-filled weather series that
// collisions are joined against.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// Options configures a Builder.
type Options struct {
	Primary     domain.Station
	Backup      domain.Station
	Concurrency int
	FillLimit   int

	// Progress, when set, is called once per finished station-month.
	// Calls are serialized.
	Progress func(domain.StationMonth)
}

// Summary counts what a Build call downloaded.
type Summary struct {
	Months       int
	Skipped      int
	Observations int
	Hours        int
}

// Builder downloads station data and turns it into a filled Series.
type Builder struct {
	fetcher domain.StationFetcher
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	summary Summary
}

// NewBuilder creates a Builder. Concurrency below 1 is treated as 1.
func NewBuilder(fetcher domain.StationFetcher, opts Options, logger *slog.Logger) *Builder {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.FillLimit < 0 {
		opts.FillLimit = 0
	}
	return &Builder{fetcher: fetcher, opts: opts, logger: logger}
}

// Summary returns the counts from the most recent Build.
func (b *Builder) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summary
}

// Build downloads every month from January of startYear to December of endYear
// for both stations, patches the primary from the backup, and fills gaps.
// Months that fail to download or parse are logged and skipped.
func (b *Builder) Build(ctx context.Context, startYear, endYear int) (domain.Series, error) {
	if endYear < startYear {
		return nil, fmt.Errorf("end year %d before start year %d", endYear, startYear)
	}

	primaryMonths := domain.StationMonths(b.opts.Primary, startYear, endYear)
	backupMonths := domain.StationMonths(b.opts.Backup, startYear, endYear)
	months := slices.Concat(primaryMonths, backupMonths)
	results := make([][]domain.Observation, len(months))

	b.mu.Lock()
	b.summary = Summary{Months: len(months)}
	b.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)

	for i, m := range months {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			obs, err := b.fetchMonth(gctx, m)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				b.skip(m, err)
				return nil
			}
			results[i] = obs
			b.done(m, len(obs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	primary := domain.NewSeries(slices.Concat(results[:len(primaryMonths)]...))
	backup := domain.NewSeries(slices.Concat(results[len(primaryMonths):]...))
	if len(primary) == 0 && len(backup) == 0 {
		return nil, fmt.Errorf("no weather data for %s or %s in %d-%d", b.opts.Primary, b.opts.Backup, startYear, endYear)
	}
	if len(primary) == 0 {
		b.logger.Warn("primary station returned no data, using backup only", "station", b.opts.Primary.String())
	}

	filled := domain.Fill(domain.Patch(primary, backup), b.opts.FillLimit)

	b.mu.Lock()
	b.summary.Hours = len(filled)
	summary := b.summary
	b.mu.Unlock()

	b.logger.Info("weather series built",
		"months", summary.Months,
		"skipped", summary.Skipped,
		"observations", summary.Observations,
		"hours", summary.Hours,
		"start", domain.FormatTime(filled.Start()),
		"end", domain.FormatTime(filled.End()),
	)
	return filled, nil
}

func (b *Builder) fetchMonth(ctx context.Context, m domain.StationMonth) ([]domain.Observation, error) {
	payload, err := b.fetcher.FetchMonth(ctx, m)
	if err != nil {
		return nil, err
	}
	obs, err := domain.ParseStationPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", m, err)
	}
	return obs, nil
}

func (b *Builder) skip(m domain.StationMonth, err error) {
	level := slog.LevelWarn
	if errors.Is(err, domain.ErrStationNotFound) {
		level = slog.LevelDebug
	}
	b.logger.Log(context.Background(), level, "skipping station month", "month", m.String(), "error", err)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.Skipped++
	b.progress(m)
}

func (b *Builder) done(m domain.StationMonth, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.Observations += n
	b.progress(m)
}

// progress must be called with mu held.
func (b *Builder) progress(m domain.StationMonth) {
	if b.opts.Progress != nil {
		b.opts.Progress(m)
	}
}
