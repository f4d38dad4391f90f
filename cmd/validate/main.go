// Command validate checks an enriched collision CSV against the input it was
// produced from. It verifies row parity and order, the derived date columns,
// and, when a weather series is supplied, every weather column and flag.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input Traffic_Collisions.csv \
//	  -output Traffic_Collisions_With_Weather_Patched.csv \
//	  -weather weather_hourly.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/weather"
)

// maxErrorsPerPhase bounds the detail printed for a failing phase.
const maxErrorsPerPhase = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	errors  []string
	dropped int
	skipped bool
}

func (p *phase) errorf(format string, args ...any) {
	if len(p.errors) >= maxErrorsPerPhase {
		p.dropped++
		return
	}
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	inputPath := flag.String("input", "Traffic_Collisions.csv", "collision CSV the output was built from")
	outputPath := flag.String("output", "Traffic_Collisions_With_Weather_Patched.csv", "enriched collision CSV")
	weatherPath := flag.String("weather", "", "weather series CSV written by \"collisionwx weather\" (optional)")
	flag.Parse()

	if code := run(*inputPath, *outputPath, *weatherPath); code != 0 {
		os.Exit(code)
	}
}

func run(inputPath, outputPath, weatherPath string) int {
	fmt.Println("=== Collision Weather Integrity Validation ===")
	fmt.Println()

	input, err := loadCSV(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load input: %v\n", err)
		return 1
	}
	output, err := loadCSV(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load output: %v\n", err)
		return 1
	}

	var index *domain.WeatherIndex
	if weatherPath != "" {
		series, err := loadSeries(weatherPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load weather: %v\n", err)
			return 1
		}
		index = domain.NewWeatherIndex(series)
	}

	phases := []*phase{
		validateHeader(input, output),
		validateParity(input, output),
		validateDerivedColumns(input, output),
		validateWeather(input, output, index),
		validateFlags(output),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped:
			status = "\033[33mSKIP\033[0m"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors)+p.dropped)
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	q := quality(output)
	fmt.Println()
	fmt.Printf("Records: %d input, %d output\n", len(input.rows), len(output.rows))
	fmt.Printf("Collisions with missing weather info: %d (coverage %.2f%%)\n", q.MissingWeather, q.Coverage())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		if p.dropped > 0 {
			fmt.Printf("  ... and %d more\n", p.dropped)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

type table struct {
	header []string
	rows   [][]string
}

func (t table) col(name string) int {
	return slices.Index(t.header, name)
}

func loadCSV(path string) (table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return table{}, err
	}
	if len(all) == 0 {
		return table{}, fmt.Errorf("%s has no header", path)
	}
	header := all[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	return table{header: header, rows: all[1:]}, nil
}

func loadSeries(path string) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return weather.ReadSeriesCSV(f)
}

// ── Phases ──

func validateHeader(input, output table) *phase {
	p := &phase{name: "Output header"}
	want := domain.OutputColumns(input.header)
	if !slices.Equal(want, output.header) {
		p.errorf("header mismatch:\n      want %v\n      got  %v", want, output.header)
	}
	return p
}

func validateParity(input, output table) *phase {
	p := &phase{name: "Row parity and order"}
	if len(input.rows) != len(output.rows) {
		p.errorf("row count: input %d, output %d", len(input.rows), len(output.rows))
	}
	for i := range min(len(input.rows), len(output.rows)) {
		in, out := input.rows[i], output.rows[i]
		for j, name := range input.header {
			var want, got string
			if j < len(in) {
				want = in[j]
			}
			if j < len(out) {
				got = out[j]
			}
			if want != got {
				p.errorf("line %d column %s: input %q, output %q", i+2, name, want, got)
				break
			}
		}
	}
	return p
}

var derivedDateColumns = []string{"date_clean", "hour_clean", "merge_key"}

func validateDerivedColumns(input, output table) *phase {
	p := &phase{name: "Date, hour and merge key recomputation"}
	for i := range min(len(input.rows), len(output.rows)) {
		expected := expectedRecord(input, i, nil)
		compareColumns(p, output, i, expected, derivedDateColumns)
	}
	return p
}

var weatherColumns = []string{"weather_datetime", "temperature", "precipitation", "visibility", "weather_desc", "is_rain", "is_snow"}

func validateWeather(input, output table, index *domain.WeatherIndex) *phase {
	p := &phase{name: "Weather columns against series"}
	if index == nil {
		p.skipped = true
		return p
	}
	for i := range min(len(input.rows), len(output.rows)) {
		expected := expectedRecord(input, i, index)
		compareColumns(p, output, i, expected, weatherColumns)
	}
	return p
}

func validateFlags(output table) *phase {
	p := &phase{name: "Boolean flag encoding"}
	for _, name := range []string{"is_rain", "is_snow"} {
		c := output.col(name)
		if c < 0 {
			p.errorf("missing column %s", name)
			continue
		}
		for i, row := range output.rows {
			if c >= len(row) || (row[c] != "true" && row[c] != "false") {
				p.errorf("line %d %s: not true/false", i+2, name)
			}
		}
	}
	return p
}

// expectedRecord rebuilds output row i from the input row. With a nil index
// only the date columns are meaningful.
func expectedRecord(input table, i int, index *domain.WeatherIndex) []string {
	c := domain.ParseCollision(input.header, input.rows[i])
	e := domain.PrepareCollision(c)
	if index != nil {
		e = domain.Enrich(e, index)
	}
	return e.Record(input.header)
}

func compareColumns(p *phase, output table, i int, expected []string, names []string) {
	row := output.rows[i]
	for _, name := range names {
		c := output.col(name)
		if c < 0 || c >= len(expected) {
			p.errorf("missing column %s", name)
			return
		}
		var got string
		if c < len(row) {
			got = row[c]
		}
		if got != expected[c] {
			p.errorf("line %d %s: want %q, got %q", i+2, name, expected[c], got)
		}
	}
}

func quality(output table) domain.Quality {
	var q domain.Quality
	c := output.col("temperature")
	for _, row := range output.rows {
		q.Total++
		if c < 0 || c >= len(row) || row[c] == "" {
			q.MissingWeather++
		}
	}
	return q
}
