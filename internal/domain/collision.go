package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Collision dataset columns the enrichment depends on.
const (
	ColumnEventID = "Event_Unique_ID"
	ColumnOccDate = "OCC_DATE"
	ColumnOccHour = "OCC_HOUR"
)

// Derived output columns, appended after the input columns in this order.
var derivedColumns = []string{
	"date_clean",
	"hour_clean",
	"merge_key",
	"weather_datetime",
	"temperature",
	"precipitation",
	"visibility",
	"weather_desc",
	"is_rain",
	"is_snow",
}

var occDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04:05-07",
	"1/2/2006",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04",
	time.RFC3339,
}

// Collision is one input row with every original column preserved in order.
type Collision struct {
	Columns []string
	Fields  map[string]string
}

// ParseCollision pairs a CSV record with its header. Missing trailing cells are empty.
func ParseCollision(columns, record []string) Collision {
	fields := make(map[string]string, len(columns))
	for i, col := range columns {
		if i < len(record) {
			fields[col] = record[i]
		} else {
			fields[col] = ""
		}
	}
	return Collision{Columns: columns, Fields: fields}
}

// Get returns the value of a column, matching the name case-insensitively
// when there is no exact match.
func (c Collision) Get(name string) string {
	if v, ok := c.Fields[name]; ok {
		return v
	}
	for k, v := range c.Fields {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// EventID returns the collision's Event_Unique_ID, or a deterministic hash of
// its fields when the dataset has no ID column.
func (c Collision) EventID() string {
	if id := strings.TrimSpace(c.Get(ColumnEventID)); id != "" {
		return id
	}
	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(c.Fields[k])
		b.WriteByte('|')
	}
	hash := sha256.Sum256([]byte(b.String()))
	return "collision-" + hex.EncodeToString(hash[:8])
}

// EnrichedCollision is a collision with its cleaned merge fields and joined weather.
type EnrichedCollision struct {
	Collision

	DateClean time.Time
	HasDate   bool
	HourClean int
	MergeKey  time.Time

	// Weather is nil when no observation exists for MergeKey.
	Weather *Observation
	IsRain  bool
	IsSnow  bool

	ProcessedAt time.Time
}

// PrepareCollision derives the clean date, clean hour and hourly merge key.
// An unparseable OCC_DATE leaves HasDate false and MergeKey zero.
func PrepareCollision(c Collision) EnrichedCollision {
	e := EnrichedCollision{Collision: c}
	e.HourClean = parseOccHour(c.Get(ColumnOccHour))

	date, ok := parseOccDate(c.Get(ColumnOccDate))
	if !ok {
		return e
	}
	e.DateClean = date
	e.HasDate = true
	e.MergeKey = date.Add(time.Duration(e.HourClean) * time.Hour)
	return e
}

// parseOccDate keeps only the calendar date of OCC_DATE.
func parseOccDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range occDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseOccHour coerces OCC_HOUR to an integer, truncating fractions.
// Non-numeric or missing values become 0.
func parseOccHour(s string) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(v)
}

// OutputColumns returns the enriched header: the input columns followed by the derived ones.
func OutputColumns(inputColumns []string) []string {
	out := make([]string, 0, len(inputColumns)+len(derivedColumns))
	out = append(out, inputColumns...)
	return append(out, derivedColumns...)
}

// Record renders the row for OutputColumns(inputColumns).
func (e EnrichedCollision) Record(inputColumns []string) []string {
	row := make([]string, 0, len(inputColumns)+len(derivedColumns))
	for _, col := range inputColumns {
		row = append(row, e.Fields[col])
	}

	var dateClean, mergeKey string
	if e.HasDate {
		dateClean = e.DateClean.Format(DateLayout)
		mergeKey = FormatTime(e.MergeKey)
	}

	var weatherTime, temp, precip, vis, desc string
	if w := e.Weather; w != nil {
		weatherTime = FormatTime(w.Time)
		temp = FormatFloat(w.Temperature)
		precip = FormatFloat(w.Precipitation)
		vis = FormatFloat(w.Visibility)
		desc = FormatString(w.Description)
	}

	return append(row,
		dateClean,
		strconv.Itoa(e.HourClean),
		mergeKey,
		weatherTime,
		temp,
		precip,
		vis,
		desc,
		strconv.FormatBool(e.IsRain),
		strconv.FormatBool(e.IsSnow),
	)
}
