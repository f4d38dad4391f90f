package eccc

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/observability"
)

// MonthStore persists raw station-month payloads between runs.
type MonthStore interface {
	GetMonth(ctx context.Context, m domain.StationMonth) ([]byte, bool, error)
	PutMonth(ctx context.Context, m domain.StationMonth, payload []byte) error
}

// CachedFetcher wraps a StationFetcher with a persistent month cache.
// Months that have not finished yet are always fetched fresh.
type CachedFetcher struct {
	inner   domain.StationFetcher
	store   MonthStore
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner domain.StationFetcher, store MonthStore, metrics *observability.Metrics, logger *slog.Logger) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		store:   store,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
		logger:  logger,
	}
}

// WithClock replaces the clock used to decide whether a month is complete.
func (c *CachedFetcher) WithClock(clock clockwork.Clock) *CachedFetcher {
	c.clock = clock
	return c
}

func (c *CachedFetcher) FetchMonth(ctx context.Context, m domain.StationMonth) ([]byte, error) {
	cacheable := c.complete(m)

	if cacheable {
		payload, ok, err := c.store.GetMonth(ctx, m)
		if err != nil {
			c.logger.Warn("station cache read failed", "month", m.String(), "error", err)
		} else if ok {
			c.metrics.StationCache.WithLabelValues("hit").Inc()
			return payload, nil
		}
		c.metrics.StationCache.WithLabelValues("miss").Inc()
	}

	payload, err := c.inner.FetchMonth(ctx, m)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := c.store.PutMonth(ctx, m, payload); err != nil {
			c.logger.Warn("station cache write failed", "month", m.String(), "error", err)
		}
	}
	return payload, nil
}

// complete reports whether the month ended before the current month began.
func (c *CachedFetcher) complete(m domain.StationMonth) bool {
	now := c.clock.Now().UTC()
	return m.Year*12+m.Month < now.Year()*12+int(now.Month())
}
