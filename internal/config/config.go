package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Output formats accepted by OUTPUT_FORMAT.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// DefaultWeatherBaseURL is the ECCC bulk climate data endpoint.
const DefaultWeatherBaseURL = "https://climate.weather.gc.ca/climate_data/bulk_data_e.html"

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Batch input and output.
	CollisionsPath string
	OutputPath     string
	OutputFormat   string
	OutputS3Bucket string
	OutputS3Key    string
	AWSRegion      string
	PostgresDSN    string

	// Weather download and gap filling.
	WeatherBaseURL        string
	WeatherPrimaryStation int
	WeatherBackupStation  int
	WeatherStartYear      int
	WeatherEndYear        int
	WeatherTimeout        time.Duration
	WeatherConcurrency    int
	WeatherFillLimit      int
	WeatherCachePath      string
	WeatherSeriesPath     string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := parsePositiveDuration("WEATHER_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-collisions"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "collisions-with-weather"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "collision-weather-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		CollisionsPath: sharedcfg.EnvOrDefault("COLLISIONS_PATH", "Traffic_Collisions.csv"),
		OutputPath:     sharedcfg.EnvOrDefault("OUTPUT_PATH", "Traffic_Collisions_With_Weather_Patched.csv"),
		OutputFormat:   strings.ToLower(sharedcfg.EnvOrDefault("OUTPUT_FORMAT", FormatCSV)),
		OutputS3Bucket: os.Getenv("OUTPUT_S3_BUCKET"),
		OutputS3Key:    os.Getenv("OUTPUT_S3_KEY"),
		AWSRegion:      sharedcfg.EnvOrDefault("AWS_REGION", "ca-central-1"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),

		WeatherBaseURL:    sharedcfg.EnvOrDefault("WEATHER_BASE_URL", DefaultWeatherBaseURL),
		WeatherTimeout:    weatherTimeout,
		WeatherCachePath:  os.Getenv("WEATHER_CACHE_PATH"),
		WeatherSeriesPath: os.Getenv("WEATHER_SERIES_PATH"),
	}

	intSettings := []struct {
		key string
		def int
		dst *int
	}{
		{"WEATHER_PRIMARY_STATION", 51459, &cfg.WeatherPrimaryStation},
		{"WEATHER_BACKUP_STATION", 48549, &cfg.WeatherBackupStation},
		{"WEATHER_START_YEAR", 2014, &cfg.WeatherStartYear},
		{"WEATHER_END_YEAR", 2025, &cfg.WeatherEndYear},
		{"WEATHER_CONCURRENCY", 4, &cfg.WeatherConcurrency},
		{"WEATHER_FILL_LIMIT", 4, &cfg.WeatherFillLimit},
	}
	for _, setting := range intSettings {
		v, err := parseInt(setting.key, setting.def)
		if err != nil {
			return nil, err
		}
		*setting.dst = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate re-checks settings after flag overrides.
func (c *Config) Validate() error {
	return c.validate()
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	if c.OutputFormat != FormatCSV && c.OutputFormat != FormatParquet {
		return fmt.Errorf("invalid OUTPUT_FORMAT %q: want csv or parquet", c.OutputFormat)
	}
	if c.WeatherPrimaryStation <= 0 {
		return errors.New("invalid WEATHER_PRIMARY_STATION")
	}
	if c.WeatherBackupStation <= 0 {
		return errors.New("invalid WEATHER_BACKUP_STATION")
	}
	if c.WeatherEndYear < c.WeatherStartYear {
		return errors.New("WEATHER_END_YEAR must not be before WEATHER_START_YEAR")
	}
	if c.WeatherConcurrency <= 0 {
		return errors.New("invalid WEATHER_CONCURRENCY")
	}
	if c.WeatherFillLimit < 0 {
		return errors.New("invalid WEATHER_FILL_LIMIT")
	}
	return nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
