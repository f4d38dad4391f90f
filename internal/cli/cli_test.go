package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/collision-weather-etl/internal/observability"
)

const (
	seriesFixture = "weather_datetime,temperature,precipitation,visibility,weather_desc\n" +
		"2022-01-01 00:00:00,-0.4,0,16.1,\n" +
		"2022-01-01 01:00:00,-1.2,0.2,9.7,Snow\n" +
		"2022-01-01 02:00:00,0.5,1.1,6.4,Rain\n"

	collisionsFixture = "Event_Unique_ID,OCC_DATE,OCC_HOUR,DIVISION\n" +
		"GO-1,2022-01-01,1,D11\n" +
		"GO-2,2022-01-01,2,D22\n" +
		"GO-3,2023-05-05,9,D31\n"

	stationFixture = "\"Date/Time (LST)\",\"Temp (°C)\",\"Precip. Amount (mm)\",\"Visibility (km)\",\"Weather\"\n" +
		"\"2022-01-01 00:00\",\"-0.4\",\"0.0\",\"16.1\",\"NA\"\n" +
		"\"2022-01-01 01:00\",\"\",\"0.2\",\"9.7\",\"Snow\"\n" +
		"\"2022-01-01 02:00\",\"0.5\",\"1.1\",\"6.4\",\"Rain\"\n"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(observability.NewMetricsForTesting)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBatch_WithPrebuiltSeries(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()
	series := writeFile(t, dir, "weather.csv", seriesFixture)
	input := writeFile(t, dir, "collisions.csv", collisionsFixture)
	output := filepath.Join(dir, "out.csv")
	cache := filepath.Join(dir, "cache.db")

	out, err := execute(t, "batch",
		"--input", input, "--output", output,
		"--weather-series", series, "--cache", cache, "--no-progress")
	require.NoError(t, err)

	assert.Contains(t, out, "Total Collisions: 3")
	assert.Contains(t, out, "Collisions with missing weather info: 1")
	assert.Contains(t, out, "Coverage: 66.67%")
	assert.Contains(t, out, "Sample Data:")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "GO-1", rows[1][0])
	assert.Equal(t, "GO-3", rows[3][0])

	runs, err := execute(t, "runs", "--cache", cache)
	require.NoError(t, err)
	assert.Contains(t, runs, "batch")
	assert.Contains(t, runs, "succeeded")
	assert.Contains(t, runs, "66.67%")
}

func TestBatch_ParquetOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()
	series := writeFile(t, dir, "weather.csv", seriesFixture)
	input := writeFile(t, dir, "collisions.csv", collisionsFixture)
	output := filepath.Join(dir, "out.parquet")

	_, err := execute(t, "batch",
		"--input", input, "--output", output, "--format", "PARQUET",
		"--weather-series", series, "--no-progress")
	require.NoError(t, err)

	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBatch_MalformedRowFailsRun(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()
	series := writeFile(t, dir, "weather.csv", seriesFixture)
	input := writeFile(t, dir, "collisions.csv", "Event_Unique_ID,OCC_DATE,OCC_HOUR,DIVISION\n"+
		"GO-1,2022-01-01,1,D11\n"+
		"GO-2,2022-01-01,2,D\"22\n"+
		"GO-3,2023-05-05,9,D31\n")
	output := filepath.Join(dir, "out.csv")
	cache := filepath.Join(dir, "cache.db")

	out, err := execute(t, "batch",
		"--input", input, "--output", output,
		"--weather-series", series, "--cache", cache, "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bare \" in non-quoted-field")
	assert.NotContains(t, out, "Success!")

	runs, err := execute(t, "runs", "--cache", cache)
	require.NoError(t, err)
	assert.Contains(t, runs, "failed")
}

func TestBatch_MissingInput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()

	_, err := execute(t, "batch", "--input", filepath.Join(dir, "nope.csv"), "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision data not found")
}

func TestBatch_InvalidFormatFlag(t *testing.T) {
	_, err := execute(t, "batch", "--format", "xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OUTPUT_FORMAT")
}

func TestWeather_BuildsFromStationServer(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("stationID") != "51459":
			_, _ = w.Write([]byte("<html>Station not found</html>"))
		case q.Get("Month") == "1":
			_, _ = w.Write([]byte(stationFixture))
		default:
			_, _ = w.Write([]byte("\"Date/Time (LST)\",\"Temp (°C)\"\n"))
		}
	}))
	defer srv.Close()
	t.Setenv("WEATHER_BASE_URL", srv.URL)

	dir := t.TempDir()
	out := filepath.Join(dir, "series.csv")

	stdout, err := execute(t, "weather", "--start-year", "2022", "--end-year", "2022", "--out", out, "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote 3 hourly observations")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2022-01-01 01:00:00,-0.4,0.2,9.7,Snow")
}

func TestRuns_RequiresCache(t *testing.T) {
	_, err := execute(t, "runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_CACHE_PATH")
}

func TestStation(t *testing.T) {
	assert.Equal(t, "Pearson Airport (ID: 51459)", station(51459).String())
	assert.Equal(t, "City Centre Airport (ID: 48549)", station(48549).String())
	assert.Equal(t, "station 7", station(7).String())
}
