package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded batch and weather runs from the cache database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if a.cfg.WeatherCachePath == "" {
				return errors.New("no cache database: set WEATHER_CACHE_PATH or --cache")
			}
			store, err := openStore(a)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "weather cache", store)

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMODE\tSTATUS\tSTARTED\tDURATION\tTOTAL\tMISSING\tCOVERAGE\tOUTPUT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%.2f%%\t%s\n",
					r.ID, r.Mode, r.Status,
					domain.FormatTime(r.StartedAt),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
					r.Quality.Total, r.Quality.MissingWeather, r.Quality.Coverage(),
					r.Output)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	cmd.Flags().String("cache", "", "sqlite download cache and run log (overrides WEATHER_CACHE_PATH)")
	return cmd
}
