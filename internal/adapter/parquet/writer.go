// Package parquet writes enriched collisions as a Snappy-compressed parquet file.
package parquet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/local"
	pq "github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

const parallelism = 4

// Row is the parquet schema for one enriched collision. The original
// collision columns travel as a JSON object in Fields.
type Row struct {
	EventID       string   `parquet:"name=event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	DateClean     *string  `parquet:"name=date_clean, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	HourClean     int32    `parquet:"name=hour_clean, type=INT32"`
	MergeKey      *string  `parquet:"name=merge_key, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	WeatherTime   *string  `parquet:"name=weather_datetime, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Temperature   *float64 `parquet:"name=temperature, type=DOUBLE, repetitiontype=OPTIONAL"`
	Precipitation *float64 `parquet:"name=precipitation, type=DOUBLE, repetitiontype=OPTIONAL"`
	Visibility    *float64 `parquet:"name=visibility, type=DOUBLE, repetitiontype=OPTIONAL"`
	WeatherDesc   *string  `parquet:"name=weather_desc, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	IsRain        bool     `parquet:"name=is_rain, type=BOOLEAN"`
	IsSnow        bool     `parquet:"name=is_snow, type=BOOLEAN"`
	ProcessedAt   int64    `parquet:"name=processed_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Fields        string   `parquet:"name=fields, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// NewRow flattens e into the parquet schema.
func NewRow(e domain.EnrichedCollision) (Row, error) {
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return Row{}, fmt.Errorf("encode fields: %w", err)
	}

	row := Row{
		EventID:     e.EventID(),
		HourClean:   int32(e.HourClean),
		IsRain:      e.IsRain,
		IsSnow:      e.IsSnow,
		ProcessedAt: e.ProcessedAt.UnixMilli(),
		Fields:      string(fields),
	}
	if e.HasDate {
		row.DateClean = optional(e.DateClean.Format(domain.DateLayout))
		row.MergeKey = optional(domain.FormatTime(e.MergeKey))
	}
	if w := e.Weather; w != nil {
		row.WeatherTime = optional(domain.FormatTime(w.Time))
		row.Temperature = w.Temperature
		row.Precipitation = w.Precipitation
		row.Visibility = w.Visibility
		row.WeatherDesc = w.Description
	}
	return row, nil
}

func optional(s string) *string { return &s }

// Writer implements pipeline.BatchLoader.
type Writer struct {
	pw   *writer.ParquetWriter
	file source.ParquetFile
}

// Create creates path and prepares a parquet writer over it.
func Create(path string) (*Writer, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("create local file writer: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(Row), parallelism)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = pq.CompressionCodec_SNAPPY
	return &Writer{pw: pw, file: fw}, nil
}

// NewWriter writes parquet to w. The caller owns w.
func NewWriter(w io.Writer) (*Writer, error) {
	pw, err := writer.NewParquetWriterFromWriter(w, new(Row), parallelism)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = pq.CompressionCodec_SNAPPY
	return &Writer{pw: pw}, nil
}

func (w *Writer) LoadBatch(_ context.Context, rows []domain.EnrichedCollision) error {
	for _, e := range rows {
		row, err := NewRow(e)
		if err != nil {
			return fmt.Errorf("%s: %w", e.EventID(), err)
		}
		if err := w.pw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", row.EventID, err)
		}
	}
	return nil
}

// Close writes the parquet footer and closes the file, if Create opened it.
func (w *Writer) Close() error {
	if err := w.pw.WriteStop(); err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return fmt.Errorf("finish parquet: %w", err)
	}
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
