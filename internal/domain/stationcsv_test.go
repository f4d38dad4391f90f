package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stationCSV = "\ufeff\"Longitude (x)\",\"Latitude (y)\",\"Station Name\",\"Climate ID\",\"Date/Time (LST)\",\"Year\",\"Month\",\"Day\",\"Time (LST)\",\"Temp (Â°C)\",\"Temp Flag\",\"Dew Point Temp (Â°C)\",\"Precip. Amount (mm)\",\"Precip. Amount Flag\",\"Visibility (km)\",\"Visibility Flag\",\"Weather\"\n" +
	"\"-79.63\",\"43.68\",\"TORONTO INTL A\",\"6158731\",\"2022-01-01 00:00\",\"2022\",\"01\",\"01\",\"00:00\",\"-0.4\",\"\",\"-2.1\",\"0.0\",\"\",\"16.1\",\"\",\"NA\"\n" +
	"\"-79.63\",\"43.68\",\"TORONTO INTL A\",\"6158731\",\"2022-01-01 01:00\",\"2022\",\"01\",\"01\",\"01:00\",\"\",\"M\",\"-2.4\",\"\",\"\",\"9.7\",\"\",\"Snow\"\n" +
	"\"-79.63\",\"43.68\",\"TORONTO INTL A\",\"6158731\",\"not a date\",\"2022\",\"01\",\"01\",\"02:00\",\"1.0\",\"\",\"\",\"\",\"\",\"\",\"\",\"\"\n"

func TestParseStationCSV(t *testing.T) {
	obs, err := ParseStationCSV(strings.NewReader(stationCSV))
	require.NoError(t, err)
	require.Len(t, obs, 2, "row with unparseable timestamp is skipped")

	first := obs[0]
	assert.Equal(t, time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), first.Time)
	require.NotNil(t, first.Temperature)
	assert.InDelta(t, -0.4, *first.Temperature, 1e-9)
	require.NotNil(t, first.Precipitation)
	assert.InDelta(t, 0.0, *first.Precipitation, 1e-9)
	require.NotNil(t, first.Visibility)
	assert.InDelta(t, 16.1, *first.Visibility, 1e-9)
	assert.Nil(t, first.Description, "NA is missing")

	second := obs[1]
	assert.Nil(t, second.Temperature)
	assert.Nil(t, second.Precipitation)
	require.NotNil(t, second.Description)
	assert.Equal(t, "Snow", *second.Description)
}

func TestParseStationCSV_MissingDateColumn(t *testing.T) {
	_, err := ParseStationCSV(strings.NewReader("Temp (C),Weather\n1.0,Rain\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Date/Time")
}

func TestParseStationCSV_OptionalColumnsAbsent(t *testing.T) {
	obs, err := ParseStationCSV(strings.NewReader("Date/Time (LST),Temp (C)\n2022-03-04 05:00,2.5\n"))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.InDelta(t, 2.5, *obs[0].Temperature, 1e-9)
	assert.Nil(t, obs[0].Visibility)
	assert.Nil(t, obs[0].Description)
}

func TestParseStationCSV_Empty(t *testing.T) {
	obs, err := ParseStationCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestParseStationPayload_StationNotFound(t *testing.T) {
	_, err := ParseStationPayload([]byte("<html><body>Station not found</body></html>"))
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestParseStationCSV_StationNotFound(t *testing.T) {
	obs, err := ParseStationCSV(strings.NewReader("<html><body><h1>Station not found</h1></body></html>"))
	require.ErrorIs(t, err, ErrStationNotFound)
	assert.Nil(t, obs)
}

func TestStationMonths(t *testing.T) {
	months := StationMonths(PearsonAirport, 2021, 2022)
	require.Len(t, months, 24)
	assert.Equal(t, StationMonth{Station: PearsonAirport, Year: 2021, Month: 1}, months[0])
	assert.Equal(t, StationMonth{Station: PearsonAirport, Year: 2022, Month: 12}, months[23])

	assert.Nil(t, StationMonths(PearsonAirport, 2023, 2022))
}
