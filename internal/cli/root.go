// Package cli wires the collisionwx commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/collision-weather-etl/internal/config"
	"github.com/couchcryptid/collision-weather-etl/internal/observability"
)

// app carries what every command needs once the root pre-run has loaded config.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

type appKey struct{}

// NewRootCmd builds the command tree with process-wide metrics registration.
func NewRootCmd() *cobra.Command {
	return newRootCmd(observability.NewMetrics)
}

func newRootCmd(newMetrics func() *observability.Metrics) *cobra.Command {
	root := &cobra.Command{
		Use:   "collisionwx",
		Short: "Enrich traffic collisions with hourly weather",
		Long: `collisionwx joins traffic-collision records with hourly ECCC weather
observations, patched from a backup station and gap-filled, and reports how
many collisions ended up with weather.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg); err != nil {
				return err
			}
			a := &app{
				cfg:     cfg,
				logger:  observability.NewLogger(cfg),
				metrics: newMetrics(),
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newBatchCmd())
	root.AddCommand(newWeatherCmd())
	root.AddCommand(newStreamCmd())
	root.AddCommand(newRunsCmd())
	return root
}

// Execute runs the root command against os.Args.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

// applyFlags copies explicitly set flags over the env config, then revalidates.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	strOverrides := map[string]*string{
		"input":          &cfg.CollisionsPath,
		"output":         &cfg.OutputPath,
		"format":         &cfg.OutputFormat,
		"weather-series": &cfg.WeatherSeriesPath,
		"cache":          &cfg.WeatherCachePath,
		"s3-bucket":      &cfg.OutputS3Bucket,
		"s3-key":         &cfg.OutputS3Key,
		"postgres-dsn":   &cfg.PostgresDSN,
	}
	for name, dst := range strOverrides {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	intOverrides := map[string]*int{
		"start-year": &cfg.WeatherStartYear,
		"end-year":   &cfg.WeatherEndYear,
	}
	for name, dst := range intOverrides {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return cfg.Validate()
}

func closeQuietly(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("close failed", "resource", name, "error", err)
	}
}
