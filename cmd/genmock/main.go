// Command genmock generates deterministic ECCC-format station CSVs and a
// matching traffic-collision CSV for local runs and test fixtures. With -serve
// it also answers bulk-download requests from the generated files, so
// "collisionwx weather" can run against it via WEATHER_BASE_URL.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data/mock \
//	  -start-year 2022 -end-year 2022 \
//	  -collisions 500 \
//	  -serve :8099
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

var stationHeader = []string{
	"Longitude (x)", "Latitude (y)", "Station Name", "Climate ID",
	"Date/Time (LST)", "Year", "Month", "Day", "Time (LST)",
	"Temp (°C)", "Temp Flag", "Precip. Amount (mm)", "Precip. Amount Flag",
	"Visibility (km)", "Visibility Flag", "Weather",
}

var collisionHeader = []string{
	"OBJECTID", "Event_Unique_ID", "OCC_DATE", "OCC_MONTH", "OCC_DOW", "OCC_YEAR",
	"OCC_HOUR", "DIVISION", "FATALITIES", "INJURY_COLLISIONS", "FTR_COLLISIONS",
	"PD_COLLISIONS", "HOOD_158", "NEIGHBOURHOOD_158", "AUTOMOBILE", "MOTORCYCLE",
	"PASSENGER", "BICYCLE", "PEDESTRIAN",
}

var conditions = []string{"NA", "Clear", "Mainly Clear", "Cloudy", "Rain", "Snow", "Rain,Fog", "Drizzle", "Ice Pellets", "Snow Showers"}

var divisions = []string{"D11", "D12", "D13", "D14", "D22", "D23", "D31", "D32", "D33", "D41", "D42", "D43", "D51", "D52", "D53", "D55"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "data/mock", "directory for generated files")
	startYear := flag.Int("start-year", 2022, "first year of station data")
	endYear := flag.Int("end-year", 2022, "last year of station data")
	collisions := flag.Int("collisions", 200, "number of collision rows")
	seed := flag.Uint64("seed", 42, "random seed")
	serve := flag.String("serve", "", "if set, serve the station files on this address")
	flag.Parse()

	if *endYear < *startYear {
		return errors.New("-end-year must not be before -start-year")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	stations := []domain.Station{domain.PearsonAirport, domain.CityCentreAirport}

	var months, gaps int
	for _, st := range stations {
		for _, m := range domain.StationMonths(st, *startYear, *endYear) {
			n, err := writeStationMonth(*outDir, m, rng)
			if err != nil {
				return fmt.Errorf("station month %s: %w", m, err)
			}
			months++
			gaps += n
		}
	}
	log.Printf("wrote %d station months (%d primary gap hours)", months, gaps)

	path := filepath.Join(*outDir, "Traffic_Collisions.csv")
	rows, err := writeCollisions(path, *collisions, *startYear, *endYear, rng)
	if err != nil {
		return fmt.Errorf("writing collisions: %w", err)
	}
	log.Printf("wrote collisions: %s", path)

	jsonPath := filepath.Join(*outDir, "collisions.jsonl")
	if err := writeJSONLines(jsonPath, rows); err != nil {
		return fmt.Errorf("writing stream fixture: %w", err)
	}
	log.Printf("wrote stream fixture: %s", jsonPath)

	if *serve == "" {
		return nil
	}
	log.Printf("serving station data on %s", *serve)
	srv := &http.Server{
		Addr:              *serve,
		Handler:           stationHandler(*outDir),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func stationPath(dir string, m domain.StationMonth) string {
	return filepath.Join(dir, "stations", strconv.Itoa(m.Station.ID), fmt.Sprintf("%04d-%02d.csv", m.Year, m.Month))
}

// writeStationMonth writes one month of hourly readings and returns how many
// primary-station hours were left blank to exercise patching.
func writeStationMonth(dir string, m domain.StationMonth, rng *rand.Rand) (int, error) {
	path := stationPath(dir, m)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(stationHeader); err != nil {
		return 0, err
	}

	primary := m.Station.ID == domain.PearsonAirport.ID
	start := time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var gaps int
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		temp := seasonalTemp(t) + rng.NormFloat64()
		precip := math.Max(0, rng.NormFloat64()*0.6)
		vis := 5 + rng.Float64()*20
		desc := conditions[rng.IntN(len(conditions))]

		tempS := strconv.FormatFloat(math.Round(temp*10)/10, 'f', 1, 64)
		precipS := strconv.FormatFloat(math.Round(precip*10)/10, 'f', 1, 64)
		visS := strconv.FormatFloat(math.Round(vis*10)/10, 'f', 1, 64)
		tempFlag := ""

		// The primary station drops readings in short bursts.
		if primary && rng.IntN(40) == 0 {
			tempS, precipS, visS, desc, tempFlag = "", "", "", "", "M"
			gaps++
		}

		if err := w.Write([]string{
			"-79.63", "43.68", m.Station.Name, "6158731",
			t.Format("2006-01-02 15:04"),
			strconv.Itoa(t.Year()), fmt.Sprintf("%02d", int(t.Month())), fmt.Sprintf("%02d", t.Day()),
			t.Format("15:04"),
			tempS, tempFlag, precipS, "", visS, "", desc,
		}); err != nil {
			return 0, err
		}
	}
	w.Flush()
	return gaps, w.Error()
}

func seasonalTemp(t time.Time) float64 {
	day := float64(t.YearDay())
	hour := float64(t.Hour())
	return 8 - 14*math.Cos(2*math.Pi*(day-15)/365) - 4*math.Cos(2*math.Pi*(hour-3)/24)
}

func writeCollisions(path string, n, startYear, endYear int, rng *rand.Rand) ([]map[string]string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(collisionHeader); err != nil {
		return nil, err
	}

	start := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	hours := int(time.Date(endYear+1, time.January, 1, 0, 0, 0, 0, time.UTC).Sub(start) / time.Hour)

	rows := make([]map[string]string, 0, n)
	for i := range n {
		at := start.Add(time.Duration(rng.IntN(hours)) * time.Hour)
		fatal := rng.IntN(200) == 0
		injury := !fatal && rng.IntN(5) == 0
		hood := rng.IntN(158) + 1

		rec := []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("GO-%d%06d", at.Year(), i+1),
			at.Format("2006-01-02"),
			at.Month().String(),
			at.Weekday().String(),
			strconv.Itoa(at.Year()),
			strconv.Itoa(at.Hour()),
			divisions[rng.IntN(len(divisions))],
			boolFlag(fatal, "1", "0"),
			boolFlag(injury, "YES", "NO"),
			boolFlag(rng.IntN(10) == 0, "YES", "NO"),
			boolFlag(!fatal && !injury, "YES", "NO"),
			strconv.Itoa(hood),
			fmt.Sprintf("Neighbourhood %d", hood),
			"YES",
			boolFlag(rng.IntN(30) == 0, "YES", "NO"),
			boolFlag(rng.IntN(4) == 0, "YES", "NO"),
			boolFlag(rng.IntN(25) == 0, "YES", "NO"),
			boolFlag(rng.IntN(12) == 0, "YES", "NO"),
		}
		// A few rows carry dates the pipeline cannot parse.
		if rng.IntN(100) == 0 {
			rec[2] = "None"
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}

		row := make(map[string]string, len(rec))
		for j, col := range collisionHeader {
			row[col] = rec[j]
		}
		rows = append(rows, row)
	}
	w.Flush()
	return rows, w.Error()
}

func boolFlag(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func writeJSONLines(path string, rows []map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// stationHandler mimics the ECCC bulk endpoint over the generated files.
func stationHandler(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		id, errID := strconv.Atoi(q.Get("stationID"))
		year, errYear := strconv.Atoi(q.Get("Year"))
		month, errMonth := strconv.Atoi(q.Get("Month"))
		if err := errors.Join(errID, errYear, errMonth); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		m := domain.StationMonth{Station: domain.Station{ID: id}, Year: year, Month: month}
		data, err := os.ReadFile(stationPath(dir, m))
		if errors.Is(err, os.ErrNotExist) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body><p>Station not found</p></body></html>"))
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(data)
	})
}
