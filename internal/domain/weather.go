package domain

import (
	"sort"
	"time"
)

// DefaultFillLimit is the longest run of missing hours bridged by forward fill.
const DefaultFillLimit = 4

// Observation is one hourly station reading. Nil fields are missing.
type Observation struct {
	Time          time.Time
	Temperature   *float64
	Precipitation *float64
	Visibility    *float64
	Description   *string
}

// Series is a chronologically ordered run of observations with unique times.
type Series []Observation

// NewSeries sorts observations by time and drops repeated timestamps,
// keeping the first occurrence.
func NewSeries(obs []Observation) Series {
	if len(obs) == 0 {
		return nil
	}
	sorted := make(Series, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:1]
	for _, o := range sorted[1:] {
		if o.Time.Equal(out[len(out)-1].Time) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Start returns the first timestamp, or the zero time for an empty series.
func (s Series) Start() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Time
}

// End returns the last timestamp, or the zero time for an empty series.
func (s Series) End() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Time
}

// Patch fills gaps in primary with values from backup. The result covers the
// union of both timelines; a field present in primary is never overwritten.
func Patch(primary, backup Series) Series {
	out := make(Series, 0, max(len(primary), len(backup)))
	i, j := 0, 0
	for i < len(primary) || j < len(backup) {
		switch {
		case j >= len(backup) || (i < len(primary) && primary[i].Time.Before(backup[j].Time)):
			out = append(out, primary[i])
			i++
		case i >= len(primary) || backup[j].Time.Before(primary[i].Time):
			out = append(out, backup[j])
			j++
		default:
			out = append(out, patchObservation(primary[i], backup[j]))
			i++
			j++
		}
	}
	return out
}

func patchObservation(p, b Observation) Observation {
	if p.Temperature == nil {
		p.Temperature = b.Temperature
	}
	if p.Precipitation == nil {
		p.Precipitation = b.Precipitation
	}
	if p.Visibility == nil {
		p.Visibility = b.Visibility
	}
	if p.Description == nil {
		p.Description = b.Description
	}
	return p
}

// Fill reindexes the series to every hour between its first and last
// hour-aligned observation, then fills missing values:
//
//	forward fill up to limit consecutive hours, per field
//	missing precipitation -> 0
//	backward fill anything still missing, without limit
//
// Observations that do not fall on the hour are dropped.
func Fill(s Series, limit int) Series {
	grid := hourlyGrid(s)
	if len(grid) == 0 {
		return nil
	}

	fillForward(grid, temperatureField, limit)
	fillForward(grid, precipitationField, limit)
	fillForward(grid, visibilityField, limit)
	fillForward(grid, descriptionField, limit)

	zero := 0.0
	for i := range grid {
		if grid[i].Precipitation == nil {
			grid[i].Precipitation = &zero
		}
	}

	fillBackward(grid, temperatureField)
	fillBackward(grid, precipitationField)
	fillBackward(grid, visibilityField)
	fillBackward(grid, descriptionField)
	return grid
}

func hourlyGrid(s Series) Series {
	aligned := make(map[int64]Observation, len(s))
	var first, last time.Time
	for _, o := range s {
		if !onTheHour(o.Time) {
			continue
		}
		if _, dup := aligned[o.Time.Unix()]; dup {
			continue
		}
		aligned[o.Time.Unix()] = o
		if first.IsZero() || o.Time.Before(first) {
			first = o.Time
		}
		if last.IsZero() || o.Time.After(last) {
			last = o.Time
		}
	}
	if len(aligned) == 0 {
		return nil
	}

	n := int(last.Sub(first)/time.Hour) + 1
	grid := make(Series, n)
	for k := range grid {
		t := first.Add(time.Duration(k) * time.Hour)
		if o, ok := aligned[t.Unix()]; ok {
			grid[k] = o
			continue
		}
		grid[k] = Observation{Time: t}
	}
	return grid
}

func onTheHour(t time.Time) bool {
	return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func temperatureField(o *Observation) **float64 { return &o.Temperature }
func precipitationField(o *Observation) **float64 { return &o.Precipitation }
func visibilityField(o *Observation) **float64 { return &o.Visibility }
func descriptionField(o *Observation) **string { return &o.Description }

func fillForward[T any](grid Series, field func(*Observation) **T, limit int) {
	var last *T
	gap := 0
	for i := range grid {
		p := field(&grid[i])
		if *p != nil {
			last = *p
			gap = 0
			continue
		}
		if last == nil {
			continue
		}
		gap++
		if gap <= limit {
			v := *last
			*p = &v
		}
	}
}

func fillBackward[T any](grid Series, field func(*Observation) **T) {
	var next *T
	for i := len(grid) - 1; i >= 0; i-- {
		p := field(&grid[i])
		if *p != nil {
			next = *p
			continue
		}
		if next != nil {
			v := *next
			*p = &v
		}
	}
}

// WeatherLookup resolves the observation for an exact hour.
type WeatherLookup interface {
	Lookup(hour time.Time) (Observation, bool)
}

// WeatherIndex is an hour-keyed index over a series.
type WeatherIndex struct {
	byHour map[int64]Observation
	start  time.Time
	end    time.Time
}

// NewWeatherIndex indexes s by hour. Later duplicates do not replace earlier ones.
func NewWeatherIndex(s Series) *WeatherIndex {
	idx := &WeatherIndex{byHour: make(map[int64]Observation, len(s))}
	for _, o := range s {
		key := o.Time.Unix()
		if _, ok := idx.byHour[key]; ok {
			continue
		}
		idx.byHour[key] = o
		if idx.start.IsZero() || o.Time.Before(idx.start) {
			idx.start = o.Time
		}
		if o.Time.After(idx.end) {
			idx.end = o.Time
		}
	}
	return idx
}

// Lookup returns the observation recorded at exactly hour.
func (w *WeatherIndex) Lookup(hour time.Time) (Observation, bool) {
	o, ok := w.byHour[hour.Unix()]
	return o, ok
}

// Len returns the number of indexed hours.
func (w *WeatherIndex) Len() int { return len(w.byHour) }

// Span returns the first and last indexed hours.
func (w *WeatherIndex) Span() (time.Time, time.Time) { return w.start, w.end }
