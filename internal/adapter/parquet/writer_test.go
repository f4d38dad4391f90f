package parquet

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

var cols = []string{"Event_Unique_ID", "OCC_DATE", "OCC_HOUR", "DIVISION"}

func enriched(id, date, hour string, temp *float64) domain.EnrichedCollision {
	e := domain.PrepareCollision(domain.ParseCollision(cols, []string{id, date, hour, "D11"}))
	if temp != nil {
		desc := "Rain"
		e.Weather = &domain.Observation{Time: e.MergeKey, Temperature: temp, Description: &desc}
		e.IsRain = true
	}
	e.ProcessedAt = time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	return e
}

func TestNewRow(t *testing.T) {
	temp := 3.5
	row, err := NewRow(enriched("GO-1", "2022-01-01", "14", &temp))
	require.NoError(t, err)

	assert.Equal(t, "GO-1", row.EventID)
	require.NotNil(t, row.MergeKey)
	assert.Equal(t, "2022-01-01 14:00:00", *row.MergeKey)
	assert.Equal(t, "2022-01-01", *row.DateClean)
	assert.Equal(t, int32(14), row.HourClean)
	assert.InDelta(t, 3.5, *row.Temperature, 1e-9)
	assert.Nil(t, row.Precipitation)
	assert.True(t, row.IsRain)

	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(row.Fields), &fields))
	assert.Equal(t, "D11", fields["DIVISION"])
}

func TestNewRow_NoDateNoWeather(t *testing.T) {
	row, err := NewRow(enriched("GO-2", "garbage", "1", nil))
	require.NoError(t, err)
	assert.Nil(t, row.DateClean)
	assert.Nil(t, row.MergeKey)
	assert.Nil(t, row.WeatherTime)
	assert.Nil(t, row.Temperature)
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	temp := -2.0

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.LoadBatch(context.Background(), []domain.EnrichedCollision{
		enriched("GO-1", "2022-01-01", "14", &temp),
		enriched("GO-2", "2022-01-02", "3", nil),
	}))
	require.NoError(t, w.Close())

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Row), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	require.Equal(t, 2, n)

	rows := make([]Row, n)
	require.NoError(t, pr.Read(&rows))

	assert.Equal(t, "GO-1", rows[0].EventID)
	require.NotNil(t, rows[0].Temperature)
	assert.InDelta(t, -2.0, *rows[0].Temperature, 1e-9)
	assert.Equal(t, "GO-2", rows[1].EventID)
	assert.Nil(t, rows[1].Temperature)
	assert.Equal(t, "2022-01-02 03:00:00", *rows[1].MergeKey)
}
