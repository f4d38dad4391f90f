package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "collision_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RecordsConsumed prometheus.Counter
	RecordsProduced prometheus.Counter
	TransformErrors prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Weather download metrics.
	StationRequests        *prometheus.CounterVec // labels: outcome={success,error,not_found}
	StationRequestDuration prometheus.Histogram
	StationCache           *prometheus.CounterVec // labels: result={hit,miss}

	// Share of processed collisions with a temperature reading, 0-100.
	WeatherCoverage prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_consumed_total",
			Help:      "Total collision records read from the source.",
		}),
		RecordsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_produced_total",
			Help:      "Total enriched records written to the sinks.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total records that could not be parsed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of records per extracted batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100, 250, 500},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		StationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_requests_total",
			Help:      "Climate data downloads by outcome.",
		}, []string{"outcome"}),
		StationRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "station_request_duration_seconds",
			Help:      "Climate data download duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		StationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_cache_total",
			Help:      "Station-month cache lookups by result.",
		}, []string{"result"}),
		WeatherCoverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_coverage_percent",
			Help:      "Percentage of processed collisions with a temperature reading.",
		}),
	}

	prometheus.MustRegister(
		m.RecordsConsumed,
		m.RecordsProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.StationRequests,
		m.StationRequestDuration,
		m.StationCache,
		m.WeatherCoverage,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsConsumed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "records_consumed_total"}),
		RecordsProduced:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "records_produced_total"}),
		TransformErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "transform_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_processing_duration_seconds"}),
		StationRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "station_requests_total"}, []string{"outcome"}),
		StationRequestDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "station_request_duration_seconds"}),
		StationCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "station_cache_total"}, []string{"result"}),
		WeatherCoverage:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "weather_coverage_percent"}),
	}
}
