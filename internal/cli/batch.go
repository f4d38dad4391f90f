package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/collision-weather-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/collision-weather-etl/internal/adapter/parquet"
	"github.com/couchcryptid/collision-weather-etl/internal/adapter/postgres"
	"github.com/couchcryptid/collision-weather-etl/internal/adapter/s3"
	"github.com/couchcryptid/collision-weather-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/collision-weather-etl/internal/config"
	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/pipeline"
)

const sampleRows = 5

func newBatchCmd() *cobra.Command {
	var noProgress bool
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Enrich the collision CSV with weather and report coverage",
		Example: `  # Default paths, weather downloaded from ECCC
  collisionwx batch

  # Reuse a series built by "collisionwx weather" and write parquet
  collisionwx batch --weather-series weather.csv --format parquet --output out.parquet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, !noProgress)
		},
	}
	cmd.Flags().String("input", "", "collision CSV to enrich (overrides COLLISIONS_PATH)")
	cmd.Flags().String("output", "", "enriched output path (overrides OUTPUT_PATH)")
	cmd.Flags().String("format", "", "output format, csv or parquet (overrides OUTPUT_FORMAT)")
	cmd.Flags().String("weather-series", "", "prebuilt weather series CSV (overrides WEATHER_SERIES_PATH)")
	cmd.Flags().String("s3-bucket", "", "upload the output to this bucket (overrides OUTPUT_S3_BUCKET)")
	cmd.Flags().String("s3-key", "", "object key for the upload (overrides OUTPUT_S3_KEY)")
	cmd.Flags().String("postgres-dsn", "", "also copy rows into Postgres (overrides POSTGRES_DSN)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the download progress bar")
	addWeatherFlags(cmd)
	return cmd
}

// sink is a batch loader that owns an output file.
type sink interface {
	pipeline.BatchLoader
	Close() error
}

func openSink(cfg *config.Config, columns []string) (sink, error) {
	switch cfg.OutputFormat {
	case config.FormatParquet:
		return parquet.Create(cfg.OutputPath)
	default:
		return csvfile.Create(cfg.OutputPath, columns)
	}
}

// sampleLoader keeps the first few loaded rows for the report.
type sampleLoader struct {
	mu   sync.Mutex
	rows []domain.EnrichedCollision
}

func (s *sampleLoader) LoadBatch(_ context.Context, rows []domain.EnrichedCollision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if len(s.rows) >= sampleRows {
			break
		}
		s.rows = append(s.rows, r)
	}
	return nil
}

func runBatch(cmd *cobra.Command, progress bool) error {
	a := appFrom(cmd)
	ctx := cmd.Context()
	started := domain.Now()

	store, err := openStore(a)
	if err != nil {
		return err
	}
	if store != nil {
		defer closeQuietly(a.logger, "weather cache", store)
	}

	quality, sample, err := enrichCollisions(ctx, a, cmd, store, progress)
	recordRun(ctx, a, store, sqlite.Run{
		Mode:      "batch",
		StartedAt: started,
		Quality:   quality,
		Output:    a.cfg.OutputPath,
	}, err)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), a.cfg.OutputPath, quality, sample)
	return nil
}

func enrichCollisions(ctx context.Context, a *app, cmd *cobra.Command, store *sqlite.Store, progress bool) (domain.Quality, []domain.EnrichedCollision, error) {
	cfg := a.cfg

	// The input is checked before the weather download, which is the slow part.
	reader, err := csvfile.Open(cfg.CollisionsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Quality{}, nil, fmt.Errorf("collision data not found, download %s first: %w", cfg.CollisionsPath, err)
	}
	if err != nil {
		return domain.Quality{}, nil, err
	}
	defer closeQuietly(a.logger, "collision reader", reader)

	series, err := loadWeather(ctx, a, cmd, store, progress)
	if err != nil {
		return domain.Quality{}, nil, err
	}
	index := domain.NewWeatherIndex(series)
	start, end := index.Span()
	a.logger.Info("weather index ready", "hours", index.Len(),
		"start", domain.FormatTime(start), "end", domain.FormatTime(end))

	out, err := openSink(cfg, reader.Columns())
	if err != nil {
		return domain.Quality{}, nil, err
	}

	sample := &sampleLoader{}
	loaders := pipeline.FanoutLoader{out, sample}
	if cfg.PostgresDSN != "" {
		pg, err := postgres.Connect(ctx, cfg.PostgresDSN, a.logger)
		if err != nil {
			out.Close()
			return domain.Quality{}, nil, err
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			out.Close()
			return domain.Quality{}, nil, err
		}
		loaders = append(loaders, pg)
	}

	transformer := pipeline.NewTransformer(index, a.metrics, a.logger)
	p := pipeline.New(reader, transformer, loaders, a.logger, a.metrics, cfg.BatchSize).
		WithMaxLoadAttempts(1).
		WithMaxExtractAttempts(1)

	a.logger.Info("merging collisions with weather", "input", cfg.CollisionsPath)
	runErr := p.Run(ctx)
	if closeErr := out.Close(); closeErr != nil {
		runErr = errors.Join(runErr, fmt.Errorf("close %s: %w", cfg.OutputPath, closeErr))
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		return transformer.Quality(), nil, runErr
	}

	if cfg.OutputS3Bucket != "" {
		up, err := s3.NewUploader(ctx, cfg.AWSRegion, a.logger)
		if err != nil {
			return transformer.Quality(), nil, err
		}
		if err := up.Upload(ctx, cfg.OutputS3Bucket, cfg.OutputS3Key, cfg.OutputPath); err != nil {
			return transformer.Quality(), nil, err
		}
	}
	return transformer.Quality(), sample.rows, nil
}

func printReport(w io.Writer, output string, q domain.Quality, sample []domain.EnrichedCollision) {
	fmt.Fprintf(w, "\nSuccess! Saved '%s'\n", output)
	fmt.Fprintln(w, "\n=== MISSING DATA ANALYSIS ===")
	fmt.Fprintf(w, "Total Collisions: %d\n", q.Total)
	fmt.Fprintf(w, "Collisions with missing weather info: %d\n", q.MissingWeather)
	fmt.Fprintf(w, "Coverage: %.2f%%\n", q.Coverage())

	if len(sample) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSample Data:")
	fmt.Fprintf(w, "%-20s  %11s  %7s  %7s\n", "merge_key", "temperature", "is_rain", "is_snow")
	for _, e := range sample {
		var mergeKey, temp string
		if e.HasDate {
			mergeKey = domain.FormatTime(e.MergeKey)
		}
		if e.Weather != nil {
			temp = domain.FormatFloat(e.Weather.Temperature)
		}
		fmt.Fprintf(w, "%-20s  %11s  %7t  %7t\n", mergeKey, temp, e.IsRain, e.IsSnow)
	}
}
