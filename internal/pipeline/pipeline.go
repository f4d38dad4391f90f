package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/observability"
)

// ErrSourceDrained is returned by a BatchExtractor once a finite source has
// no records left. Run treats it as normal completion.
var ErrSourceDrained = errors.New("source drained")

// errStopped signals that the context ended mid-cycle.
var errStopped = errors.New("pipeline stopped")

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into an enriched collision.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.EnrichedCollision, error)
}

// BatchLoader writes enriched collisions to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, rows []domain.EnrichedCollision) error
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor       BatchExtractor
	transformer     Transformer
	loader          BatchLoader
	logger          *slog.Logger
	metrics         *observability.Metrics
	ready           atomic.Bool
	batchSize       int
	maxLoadAttempts int

	maxExtractAttempts int
	extractFailures    int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// WithMaxLoadAttempts bounds how often a failing batch is retried before Run
// gives up and returns the load error. Zero, the default, retries until the
// context ends.
func (p *Pipeline) WithMaxLoadAttempts(n int) *Pipeline {
	p.maxLoadAttempts = n
	return p
}

// WithMaxExtractAttempts bounds consecutive extract failures before Run
// returns the extract error. Zero, the default, retries until the context ends.
// File sources use 1: a failed read loses the rows it already consumed.
func (p *Pipeline) WithMaxExtractAttempts(n int) *Pipeline {
	p.maxExtractAttempts = n
	return p
}

// CheckReadiness returns nil if the pipeline has loaded at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any records yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled or the
// source is drained. It returns an error only when a batch could not be
// extracted or loaded within the configured attempts.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		err := p.processBatch(ctx, &backoff)
		switch {
		case err == nil:
		case errors.Is(err, ErrSourceDrained):
			p.logger.Info("pipeline finished", "reason", "source drained")
			return nil
		case errors.Is(err, errStopped):
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
			return err
		}
	}
}

// processBatch runs one extract-transform-load cycle.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) error {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if errors.Is(err, ErrSourceDrained) {
			return err
		}
		if ctx.Err() != nil {
			return errStopped
		}
		p.extractFailures++
		p.logger.Error("extract batch failed", "error", err, "attempt", p.extractFailures)
		if p.maxExtractAttempts > 0 && p.extractFailures >= p.maxExtractAttempts {
			return fmt.Errorf("extract batch after %d attempts: %w", p.extractFailures, err)
		}
		return p.backoffOrStop(ctx, backoff)
	}
	p.extractFailures = 0

	if len(rawBatch) == 0 {
		if ctx.Err() != nil {
			return errStopped
		}
		return nil
	}

	p.metrics.RecordsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	loaded, err := p.transformAndLoad(ctx, rawBatch, backoff)
	if err != nil {
		return err
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return nil
}

// transformAndLoad transforms each record in the batch, loads the successes,
// and commits. Returns the number of loaded records.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration) (int, error) {
	outBatch := make([]domain.EnrichedCollision, 0, len(rawBatch))
	successfulRaws := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("transform failed, skipping record",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		outBatch = append(outBatch, out)
		successfulRaws = append(successfulRaws, raw)
	}

	if len(outBatch) == 0 {
		return 0, nil
	}

	if err := p.loadWithRetry(ctx, outBatch, backoff); err != nil {
		return 0, err
	}

	p.metrics.RecordsProduced.Add(float64(len(outBatch)))

	for _, raw := range successfulRaws {
		p.commitOffset(ctx, raw)
	}

	return len(outBatch), nil
}

// loadWithRetry retries the same batch with backoff so a transient sink
// outage does not drop records.
func (p *Pipeline) loadWithRetry(ctx context.Context, batch []domain.EnrichedCollision, backoff *time.Duration) error {
	for attempt := 1; ; attempt++ {
		err := p.loader.LoadBatch(ctx, batch)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return errStopped
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(batch), "attempt", attempt)
		if p.maxLoadAttempts > 0 && attempt >= p.maxLoadAttempts {
			return fmt.Errorf("load batch after %d attempts: %w", attempt, err)
		}
		if err := p.backoffOrStop(ctx, backoff); err != nil {
			return err
		}
	}
}

// backoffOrStop sleeps with the current backoff and advances it.
// Returns errStopped if the context ends first.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) error {
	if ctx.Err() != nil {
		return errStopped
	}
	if !sleepWithContext(ctx, *backoff) {
		return errStopped
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return nil
}

// commitOffset commits the record if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
