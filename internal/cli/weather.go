package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/collision-weather-etl/internal/adapter/eccc"
	"github.com/couchcryptid/collision-weather-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/weather"
)

func newWeatherCmd() *cobra.Command {
	var (
		out        string
		noProgress bool
	)
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Download, patch and gap-fill the hourly weather series",
		Example: `  # Build 2020 through 2022 and cache downloads
  collisionwx weather --start-year 2020 --end-year 2022 --cache weather.db --out weather.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWeather(cmd, out, !noProgress)
		},
	}
	cmd.Flags().StringVar(&out, "out", "weather_hourly.csv", "path of the series CSV to write")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the download progress bar")
	addWeatherFlags(cmd)
	return cmd
}

func addWeatherFlags(cmd *cobra.Command) {
	cmd.Flags().Int("start-year", 0, "first year of weather to download (overrides WEATHER_START_YEAR)")
	cmd.Flags().Int("end-year", 0, "last year of weather to download (overrides WEATHER_END_YEAR)")
	cmd.Flags().String("cache", "", "sqlite download cache and run log (overrides WEATHER_CACHE_PATH)")
}

func runWeather(cmd *cobra.Command, out string, progress bool) error {
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

	series, err := buildWeather(ctx, a, cmd, store, progress)
	if err == nil {
		err = writeSeries(out, series)
	}

	recordRun(ctx, a, store, sqlite.Run{
		Mode:      "weather",
		StartedAt: started,
		Output:    out,
	}, err)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d hourly observations (%s to %s) to %s\n",
		len(series), domain.FormatTime(series.Start()), domain.FormatTime(series.End()), out)
	return nil
}

func writeSeries(path string, series domain.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := weather.WriteSeriesCSV(f, series); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// loadWeather reads a prebuilt series when WEATHER_SERIES_PATH is set and
// downloads one otherwise.
func loadWeather(ctx context.Context, a *app, cmd *cobra.Command, store *sqlite.Store, progress bool) (domain.Series, error) {
	if path := a.cfg.WeatherSeriesPath; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open weather series: %w", err)
		}
		defer f.Close()
		series, err := weather.ReadSeriesCSV(f)
		if err != nil {
			return nil, fmt.Errorf("read weather series %s: %w", path, err)
		}
		a.logger.Info("weather series loaded", "path", path, "hours", len(series))
		return series, nil
	}
	return buildWeather(ctx, a, cmd, store, progress)
}

func buildWeather(ctx context.Context, a *app, cmd *cobra.Command, store *sqlite.Store, progress bool) (domain.Series, error) {
	cfg := a.cfg
	var fetcher domain.StationFetcher = eccc.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimeout, a.metrics, a.logger)
	if store != nil {
		fetcher = eccc.NewCachedFetcher(fetcher, store, a.metrics, a.logger)
	}

	opts := weather.Options{
		Primary:     station(cfg.WeatherPrimaryStation),
		Backup:      station(cfg.WeatherBackupStation),
		Concurrency: cfg.WeatherConcurrency,
		FillLimit:   cfg.WeatherFillLimit,
	}

	var bar *progressbar.ProgressBar
	if progress {
		months := 2 * 12 * (cfg.WeatherEndYear - cfg.WeatherStartYear + 1)
		bar = progressbar.NewOptions(months,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("downloading station months"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		opts.Progress = func(domain.StationMonth) { _ = bar.Add(1) }
	}

	a.logger.Info("building weather series",
		"primary", opts.Primary.String(), "backup", opts.Backup.String(),
		"start_year", cfg.WeatherStartYear, "end_year", cfg.WeatherEndYear)

	b := weather.NewBuilder(fetcher, opts, a.logger)
	series, err := b.Build(ctx, cfg.WeatherStartYear, cfg.WeatherEndYear)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	sum := b.Summary()
	a.logger.Info("weather series built",
		"months", sum.Months, "skipped", sum.Skipped,
		"observations", sum.Observations, "hours", sum.Hours)
	return series, nil
}

// station keeps the well-known name when the configured ID matches a default.
func station(id int) domain.Station {
	for _, known := range []domain.Station{domain.PearsonAirport, domain.CityCentreAirport} {
		if id == known.ID {
			return known
		}
	}
	return domain.Station{ID: id}
}

func openStore(a *app) (*sqlite.Store, error) {
	if a.cfg.WeatherCachePath == "" {
		return nil, nil
	}
	store, err := sqlite.Open(a.cfg.WeatherCachePath)
	if err != nil {
		return nil, fmt.Errorf("open weather cache: %w", err)
	}
	return store, nil
}

// recordRun logs the outcome in the run table. Failures to record are logged only.
func recordRun(ctx context.Context, a *app, store *sqlite.Store, r sqlite.Run, runErr error) {
	if store == nil {
		return
	}
	r.FinishedAt = domain.Now()
	r.Status = sqlite.RunSucceeded
	if runErr != nil {
		r.Status = sqlite.RunFailed
		r.Error = runErr.Error()
	}
	saved, err := store.RecordRun(context.WithoutCancel(ctx), r)
	if err != nil {
		a.logger.Warn("record run failed", "error", err)
		return
	}
	a.logger.Debug("run recorded", "id", saved.ID, "status", saved.Status)
}
