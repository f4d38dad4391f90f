package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	rainTerms = []string{"rain", "drizzle"}
	snowTerms = []string{"snow", "ice pellets"}
)

// Enrich left-joins the observation at the collision's merge key, derives the
// precipitation flags, and stamps ProcessedAt. A nil lookup or missing date
// leaves the weather empty.
func Enrich(e EnrichedCollision, lookup WeatherLookup) EnrichedCollision {
	e.ProcessedAt = Now()
	e.Weather = nil
	e.IsRain, e.IsSnow = false, false
	if lookup == nil || !e.HasDate {
		return e
	}

	obs, ok := lookup.Lookup(e.MergeKey)
	if !ok {
		return e
	}
	e.Weather = &obs
	e.IsRain, e.IsSnow = precipitationFlags(obs.Description)
	return e
}

// precipitationFlags classifies an ECCC weather description such as
// "Freezing Rain,Snow" into rain and snow indicators.
func precipitationFlags(desc *string) (rain, snow bool) {
	if desc == nil {
		return false, false
	}
	d := strings.ToLower(*desc)
	return containsAny(d, rainTerms), containsAny(d, snowTerms)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// ParseRawCollision extracts the collision carried by a raw event. File sources
// carry it in Row; stream sources carry a flat JSON object whose scalar values
// are converted to strings.
func ParseRawCollision(raw RawEvent) (Collision, error) {
	if raw.Row != nil {
		return *raw.Row, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return Collision{}, fmt.Errorf("parse raw collision: %w", err)
	}
	if obj == nil {
		return Collision{}, fmt.Errorf("parse raw collision: empty payload")
	}

	columns := make([]string, 0, len(obj))
	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		s, err := scalarString(v)
		if err != nil {
			return Collision{}, fmt.Errorf("parse raw collision field %q: %w", k, err)
		}
		columns = append(columns, k)
		fields[k] = s
	}
	sort.Strings(columns)
	return Collision{Columns: columns, Fields: fields}, nil
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

// CollisionRecord is the JSON shape of an enriched collision on the sink topic.
type CollisionRecord struct {
	EventID       string            `json:"event_id"`
	Fields        map[string]string `json:"fields"`
	DateClean     string            `json:"date_clean,omitempty"`
	HourClean     int               `json:"hour_clean"`
	MergeKey      string            `json:"merge_key,omitempty"`
	WeatherTime   string            `json:"weather_datetime,omitempty"`
	Temperature   *float64          `json:"temperature"`
	Precipitation *float64          `json:"precipitation"`
	Visibility    *float64          `json:"visibility"`
	WeatherDesc   *string           `json:"weather_desc"`
	IsRain        bool              `json:"is_rain"`
	IsSnow        bool              `json:"is_snow"`
	ProcessedAt   time.Time         `json:"processed_at"`
}

// NewCollisionRecord flattens an enriched collision into its wire shape.
func NewCollisionRecord(e EnrichedCollision) CollisionRecord {
	rec := CollisionRecord{
		EventID:     e.EventID(),
		Fields:      e.Fields,
		HourClean:   e.HourClean,
		IsRain:      e.IsRain,
		IsSnow:      e.IsSnow,
		ProcessedAt: e.ProcessedAt,
	}
	if e.HasDate {
		rec.DateClean = e.DateClean.Format(DateLayout)
		rec.MergeKey = FormatTime(e.MergeKey)
	}
	if w := e.Weather; w != nil {
		rec.WeatherTime = FormatTime(w.Time)
		rec.Temperature = w.Temperature
		rec.Precipitation = w.Precipitation
		rec.Visibility = w.Visibility
		rec.WeatherDesc = w.Description
	}
	return rec
}

// SerializeCollision marshals an enriched collision for the sink topic, keyed by event ID.
func SerializeCollision(e EnrichedCollision) (OutputEvent, error) {
	rec := NewCollisionRecord(e)
	data, err := json.Marshal(rec)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize collision: %w", err)
	}
	return OutputEvent{
		Key:   []byte(rec.EventID),
		Value: data,
		Headers: map[string]string{
			"merge_key":    rec.MergeKey,
			"processed_at": e.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
