package domain

// Quality tallies how many collisions received weather.
type Quality struct {
	Total          int `json:"total"`
	MissingWeather int `json:"missing_weather"`
}

// Add counts one enriched collision. A collision is missing weather when no
// observation matched or the matched temperature is missing.
func (q *Quality) Add(e EnrichedCollision) {
	q.Total++
	if e.Weather == nil || e.Weather.Temperature == nil {
		q.MissingWeather++
	}
}

// Merge folds another tally into q.
func (q *Quality) Merge(other Quality) {
	q.Total += other.Total
	q.MissingWeather += other.MissingWeather
}

// Coverage is the percentage of collisions with weather, or 0 when there are none.
func (q Quality) Coverage() float64 {
	if q.Total == 0 {
		return 0
	}
	return float64(q.Total-q.MissingWeather) / float64(q.Total) * 100
}
