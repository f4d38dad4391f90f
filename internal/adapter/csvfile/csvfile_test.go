package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/pipeline"
)

const collisionsCSV = "\ufeff\"Event_Unique_ID\",\"OCC_DATE\",\"OCC_HOUR\",\"DIVISION\"\n" +
	"GO-1,2022-01-01,14,D11\n" +
	"GO-2,2022-01-01,15,D12\n" +
	"GO-3,garbage,3\n"

func TestReader_ExtractBatch(t *testing.T) {
	r, err := NewReader(strings.NewReader(collisionsCSV), "collisions.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"Event_Unique_ID", "OCC_DATE", "OCC_HOUR", "DIVISION"}, r.Columns(),
		"BOM stripped from the quoted first header")

	first, err := r.ExtractBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, []byte("GO-1"), first[0].Key)
	assert.Equal(t, "14", first[0].Row.Get("OCC_HOUR"))
	assert.Equal(t, int64(2), first[0].Offset)
	assert.Equal(t, "collisions.csv", first[0].Topic)

	second, err := r.ExtractBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "GO-3", second[0].Row.Get(domain.ColumnEventID))
	assert.Empty(t, second[0].Row.Get("DIVISION"), "short rows padded")

	_, err = r.ExtractBatch(context.Background(), 2)
	assert.ErrorIs(t, err, pipeline.ErrSourceDrained)
}

func TestReader_ExactMultipleDrainsOnNextCall(t *testing.T) {
	r, err := NewReader(strings.NewReader("A\n1\n2\n"), "in")
	require.NoError(t, err)

	batch, err := r.ExtractBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	_, err = r.ExtractBatch(context.Background(), 2)
	assert.ErrorIs(t, err, pipeline.ErrSourceDrained)
}

func TestReader_MalformedRow(t *testing.T) {
	input := "Event_Unique_ID,OCC_DATE,OCC_HOUR,DIVISION\n" +
		"GO-1,2022-01-01,1,D11\n" +
		"GO-2,2022-01-01,2,D\"22\n" +
		"GO-3,2022-01-01,3,D31\n"
	r, err := NewReader(strings.NewReader(input), "collisions.csv")
	require.NoError(t, err)

	batch, err := r.ExtractBatch(context.Background(), 10)
	require.ErrorIs(t, err, csv.ErrBareQuote)
	assert.Nil(t, batch)
	assert.Contains(t, err.Error(), "collisions.csv")
}

func TestReader_EmptyFile(t *testing.T) {
	_, err := NewReader(strings.NewReader(""), "empty.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCountRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collisions.csv")
	require.NoError(t, os.WriteFile(path, []byte(collisionsCSV), 0o600))

	n, err := CountRows(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestWriter_LoadBatch(t *testing.T) {
	cols := []string{"Event_Unique_ID", "OCC_DATE", "OCC_HOUR"}
	temp := 1.5

	hit := domain.PrepareCollision(domain.ParseCollision(cols, []string{"GO-1", "2022-01-01", "14"}))
	hit.Weather = &domain.Observation{Time: time.Date(2022, 1, 1, 14, 0, 0, 0, time.UTC), Temperature: &temp}
	miss := domain.PrepareCollision(domain.ParseCollision(cols, []string{"GO-2", "bad", "x"}))

	var buf bytes.Buffer
	w, err := NewWriter(&buf, cols)
	require.NoError(t, err)
	require.NoError(t, w.LoadBatch(context.Background(), []domain.EnrichedCollision{hit, miss}))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(domain.OutputColumns(cols), ","), lines[0])
	assert.Equal(t, "GO-1,2022-01-01,14,2022-01-01,14,2022-01-01 14:00:00,2022-01-01 14:00:00,1.5,,,,false,false", lines[1])
	assert.Equal(t, "GO-2,bad,x,,0,,,,,,,false,false", lines[2])
}

func TestCreate_RoundTripThroughReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	cols := []string{"Event_Unique_ID", "OCC_DATE", "OCC_HOUR"}

	w, err := Create(path, cols)
	require.NoError(t, err)
	row := domain.PrepareCollision(domain.ParseCollision(cols, []string{"GO-1", "2022-01-01", "3"}))
	require.NoError(t, w.LoadBatch(context.Background(), []domain.EnrichedCollision{row}))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, domain.OutputColumns(cols), r.Columns())
	batch, err := r.ExtractBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "2022-01-01 03:00:00", batch[0].Row.Get("merge_key"))
}
