package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/observability"
)

// CollisionTransformer implements Transformer by joining each collision
// against an hourly weather lookup. It keeps a running quality tally.
type CollisionTransformer struct {
	weather domain.WeatherLookup
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	quality domain.Quality
}

// NewTransformer creates a CollisionTransformer. A nil lookup leaves every
// record without weather.
func NewTransformer(weather domain.WeatherLookup, metrics *observability.Metrics, logger *slog.Logger) *CollisionTransformer {
	return &CollisionTransformer{
		weather: weather,
		metrics: metrics,
		logger:  logger,
	}
}

func (t *CollisionTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.EnrichedCollision, error) {
	c, err := domain.ParseRawCollision(raw)
	if err != nil {
		return domain.EnrichedCollision{}, err
	}

	e := domain.PrepareCollision(c)
	if !e.HasDate {
		t.logger.Warn("unparseable OCC_DATE, leaving weather empty",
			"event_id", c.EventID(), "occ_date", c.Get(domain.ColumnOccDate))
	}
	e = domain.Enrich(e, t.weather)

	t.mu.Lock()
	t.quality.Add(e)
	coverage := t.quality.Coverage()
	t.mu.Unlock()
	t.metrics.WeatherCoverage.Set(coverage)

	return e, nil
}

// Quality returns the tally of everything transformed so far.
func (t *CollisionTransformer) Quality() domain.Quality {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quality
}
