package weather

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// SeriesColumns is the header of an exported weather series.
var SeriesColumns = []string{"weather_datetime", "temperature", "precipitation", "visibility", "weather_desc"}

// WriteSeriesCSV writes s with a SeriesColumns header.
func WriteSeriesCSV(w io.Writer, s domain.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SeriesColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range s {
		if err := cw.Write([]string{
			domain.FormatTime(o.Time),
			domain.FormatFloat(o.Temperature),
			domain.FormatFloat(o.Precipitation),
			domain.FormatFloat(o.Visibility),
			domain.FormatString(o.Description),
		}); err != nil {
			return fmt.Errorf("write %s: %w", domain.FormatTime(o.Time), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSeriesCSV reads a series written by WriteSeriesCSV.
func ReadSeriesCSV(r io.Reader) (domain.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(SeriesColumns)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, SeriesColumns) {
		return nil, fmt.Errorf("unexpected weather series header %v", header)
	}

	var obs []domain.Observation
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read weather series: %w", err)
		}
		t, err := time.Parse(domain.DateTimeLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("parse weather_datetime %q: %w", rec[0], err)
		}
		obs = append(obs, domain.Observation{
			Time:          t,
			Temperature:   domain.ParseOptionalFloat(rec[1]),
			Precipitation: domain.ParseOptionalFloat(rec[2]),
			Visibility:    domain.ParseOptionalFloat(rec[3]),
			Description:   domain.ParseOptionalString(rec[4]),
		})
	}
	return domain.NewSeries(obs), nil
}
