package domain

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// stationNotFoundMarker appears in the HTML page ECCC serves for unknown station IDs.
const stationNotFoundMarker = "Station not found"

var stationTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// stationColumns holds the header positions of the fields we keep; -1 when absent.
type stationColumns struct {
	dateTime      int
	temperature   int
	precipitation int
	visibility    int
	weather       int
}

// ParseStationPayload parses a downloaded station-month payload, mapping the
// ECCC "Station not found" page to ErrStationNotFound.
func ParseStationPayload(data []byte) ([]Observation, error) {
	if bytes.Contains(data, []byte(stationNotFoundMarker)) {
		return nil, ErrStationNotFound
	}
	return parseStationRecords(bytes.NewReader(data))
}

// ParseStationCSV parses an ECCC bulk hourly CSV. Rows whose timestamp cannot
// be parsed are skipped. An input without a Date/Time column is an error, and
// a "Station not found" page yields ErrStationNotFound.
func ParseStationCSV(r io.Reader) ([]Observation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read station payload: %w", err)
	}
	return ParseStationPayload(data)
}

func parseStationRecords(r io.Reader) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read station header: %w", err)
	}

	cols, err := locateStationColumns(header)
	if err != nil {
		return nil, err
	}

	var obs []Observation
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read station row: %w", err)
		}

		t, ok := parseStationTime(cell(rec, cols.dateTime))
		if !ok {
			continue
		}
		obs = append(obs, Observation{
			Time:          t,
			Temperature:   ParseOptionalFloat(cell(rec, cols.temperature)),
			Precipitation: ParseOptionalFloat(cell(rec, cols.precipitation)),
			Visibility:    ParseOptionalFloat(cell(rec, cols.visibility)),
			Description:   ParseOptionalString(cell(rec, cols.weather)),
		})
	}
	return obs, nil
}

func locateStationColumns(header []string) (stationColumns, error) {
	cols := stationColumns{dateTime: -1, temperature: -1, precipitation: -1, visibility: -1, weather: -1}
	for i, h := range header {
		name := normalizeHeader(h)
		switch {
		case strings.HasPrefix(name, "Date/Time"):
			cols.dateTime = i
		case strings.HasPrefix(name, "Temp ("):
			cols.temperature = i
		case strings.HasPrefix(name, "Precip. Amount ("):
			cols.precipitation = i
		case strings.HasPrefix(name, "Visibility ("):
			cols.visibility = i
		case name == "Weather":
			cols.weather = i
		}
	}
	if cols.dateTime < 0 {
		return cols, errors.New("station csv: missing Date/Time column")
	}
	return cols, nil
}

// normalizeHeader strips the UTF-8 BOM and surrounding whitespace from a header cell.
func normalizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

func parseStationTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range stationTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
