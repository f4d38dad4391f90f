package weather

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestWriteSeriesCSV(t *testing.T) {
	series := domain.Series{
		{Time: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), Temperature: ptr(-1.5), Precipitation: ptr(0.0), Description: ptr("Snow")},
		{Time: time.Date(2022, 1, 1, 1, 0, 0, 0, time.UTC), Temperature: ptr(-2.0), Precipitation: ptr(0.2), Visibility: ptr(9.7)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSeriesCSV(&buf, series))

	want := "weather_datetime,temperature,precipitation,visibility,weather_desc\n" +
		"2022-01-01 00:00:00,-1.5,0,,Snow\n" +
		"2022-01-01 01:00:00,-2,0.2,9.7,\n"
	assert.Equal(t, want, buf.String())

	got, err := ReadSeriesCSV(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(series, got); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestReadSeriesCSV_Empty(t *testing.T) {
	got, err := ReadSeriesCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadSeriesCSV_WrongHeader(t *testing.T) {
	_, err := ReadSeriesCSV(strings.NewReader("a,b,c,d,e\n"))
	require.Error(t, err)
}

func TestReadSeriesCSV_BadTime(t *testing.T) {
	_, err := ReadSeriesCSV(strings.NewReader(strings.Join(SeriesColumns, ",") + "\nyesterday,1,,,\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weather_datetime")
}
