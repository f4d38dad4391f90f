package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// FanoutLoader loads every batch into each of its loaders, in order.
// It stops at the first failure.
type FanoutLoader []BatchLoader

func (f FanoutLoader) LoadBatch(ctx context.Context, rows []domain.EnrichedCollision) error {
	for i, l := range f {
		if err := l.LoadBatch(ctx, rows); err != nil {
			return fmt.Errorf("loader %d: %w", i, err)
		}
	}
	return nil
}
