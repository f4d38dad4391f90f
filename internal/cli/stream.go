package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/collision-weather-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/collision-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/pipeline"
)

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Consume raw collisions from Kafka and publish them with weather",
		Long: `stream loads (or builds) the weather series once, then enriches collision
JSON from KAFKA_SOURCE_TOPIC into KAFKA_SINK_TOPIC until interrupted. Health,
readiness, quality and Prometheus endpoints are served on HTTP_ADDR.`,
		RunE: runStream,
	}
	cmd.Flags().String("weather-series", "", "prebuilt weather series CSV (overrides WEATHER_SERIES_PATH)")
	addWeatherFlags(cmd)
	return cmd
}

func runStream(cmd *cobra.Command, _ []string) error {
	a := appFrom(cmd)
	cfg, logger := a.cfg, a.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(a)
	if err != nil {
		return err
	}
	if store != nil {
		defer closeQuietly(logger, "weather cache", store)
	}

	series, err := loadWeather(ctx, a, cmd, store, false)
	if err != nil {
		return err
	}
	index := domain.NewWeatherIndex(series)
	logger.Info("weather index ready", "hours", index.Len())

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(index, a.metrics, logger)

	p := pipeline.New(reader, transformer, writer, logger, a.metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, transformer, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeQuietly(logger, "kafka reader", reader)
	closeQuietly(logger, "kafka writer", writer)

	q := transformer.Quality()
	logger.Info("shutdown complete", "total", q.Total, "missing_weather", q.MissingWeather, "coverage", q.Coverage())
	return nil
}
