package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

func hour(n int) time.Time { return base.Add(time.Duration(n) * time.Hour) }

func f(v float64) *float64 { return &v }

func s(v string) *string { return &v }

func temps(series Series) []*float64 {
	out := make([]*float64, len(series))
	for i, o := range series {
		out[i] = o.Temperature
	}
	return out
}

func assertFloats(t *testing.T, want []any, got []*float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, w := range want {
		if w == nil {
			assert.Nil(t, got[i], "index %d", i)
			continue
		}
		require.NotNil(t, got[i], "index %d", i)
		assert.InDelta(t, w.(float64), *got[i], 1e-9, "index %d", i)
	}
}

func TestNewSeries_SortsAndDropsDuplicates(t *testing.T) {
	series := NewSeries([]Observation{
		{Time: hour(2), Temperature: f(2)},
		{Time: hour(0), Temperature: f(0)},
		{Time: hour(2), Temperature: f(99)},
		{Time: hour(1), Temperature: f(1)},
	})

	require.Len(t, series, 3)
	assert.Equal(t, hour(0), series.Start())
	assert.Equal(t, hour(2), series.End())
	assert.InDelta(t, 2.0, *series[2].Temperature, 1e-9, "first occurrence wins")
}

func TestPatch_PrimaryWinsPerField(t *testing.T) {
	primary := Series{
		{Time: hour(0), Temperature: f(-3.2), Visibility: nil, Description: s("Snow")},
		{Time: hour(1), Temperature: nil, Precipitation: f(0.4)},
	}
	backup := Series{
		{Time: hour(0), Temperature: f(-1.0), Visibility: f(9.7), Description: s("Rain")},
		{Time: hour(1), Temperature: f(-2.5), Precipitation: f(9.9)},
	}

	got := Patch(primary, backup)

	require.Len(t, got, 2)
	assert.InDelta(t, -3.2, *got[0].Temperature, 1e-9)
	assert.InDelta(t, 9.7, *got[0].Visibility, 1e-9)
	assert.Equal(t, "Snow", *got[0].Description)
	assert.InDelta(t, -2.5, *got[1].Temperature, 1e-9)
	assert.InDelta(t, 0.4, *got[1].Precipitation, 1e-9)
}

func TestPatch_UnionOfTimelines(t *testing.T) {
	primary := Series{{Time: hour(1), Temperature: f(1)}, {Time: hour(4), Temperature: f(4)}}
	backup := Series{{Time: hour(0), Temperature: f(0)}, {Time: hour(2), Temperature: f(2)}, {Time: hour(5), Temperature: f(5)}}

	got := Patch(primary, backup)

	require.Len(t, got, 5)
	for i, want := range []int{0, 1, 2, 4, 5} {
		assert.Equal(t, hour(want), got[i].Time)
	}
}

func TestPatch_EmptySides(t *testing.T) {
	only := Series{{Time: hour(0), Temperature: f(1)}}
	assert.Equal(t, only, Patch(only, nil))
	assert.Equal(t, only, Patch(nil, only))
	assert.Empty(t, Patch(nil, nil))
}

func TestFill_ReindexesHourly(t *testing.T) {
	series := Series{
		{Time: hour(0), Temperature: f(0)},
		{Time: hour(3), Temperature: f(3)},
	}

	got := Fill(series, DefaultFillLimit)

	require.Len(t, got, 4)
	for i := range got {
		assert.Equal(t, hour(i), got[i].Time)
	}
}

func TestFill_DropsOffHourObservations(t *testing.T) {
	series := Series{
		{Time: hour(0), Temperature: f(0)},
		{Time: hour(0).Add(30 * time.Minute), Temperature: f(50)},
		{Time: hour(1), Temperature: f(1)},
	}

	got := Fill(series, DefaultFillLimit)

	require.Len(t, got, 2)
	assertFloats(t, []any{0.0, 1.0}, temps(got))
}

func TestFill_ForwardFillRespectsLimitThenBackfills(t *testing.T) {
	// 6-hour gap: hours 1-4 come from hour 0, hours 5-6 are back-filled from hour 7.
	series := Series{
		{Time: hour(0), Temperature: f(10)},
		{Time: hour(7), Temperature: f(17)},
	}

	got := Fill(series, 4)

	assertFloats(t, []any{10.0, 10.0, 10.0, 10.0, 10.0, 17.0, 17.0, 17.0}, temps(got))
}

func TestFill_LeadingGapBackfilled(t *testing.T) {
	series := Series{
		{Time: hour(0), Visibility: f(5)},
		{Time: hour(2), Temperature: f(-1), Visibility: f(6)},
	}

	got := Fill(series, DefaultFillLimit)

	assertFloats(t, []any{-1.0, -1.0, -1.0}, temps(got))
}

func TestFill_MissingPrecipitationIsZero(t *testing.T) {
	series := Series{
		{Time: hour(0), Temperature: f(1)},
		{Time: hour(1), Temperature: f(1), Precipitation: f(2.5)},
		{Time: hour(8), Temperature: f(1)},
	}

	got := Fill(series, 4)

	precip := make([]*float64, len(got))
	for i, o := range got {
		precip[i] = o.Precipitation
	}
	// hour 0 has nothing before it: zero, not back-filled from hour 1.
	// hours 2-5 forward-filled from hour 1; hours 6-8 zero.
	assertFloats(t, []any{0.0, 2.5, 2.5, 2.5, 2.5, 2.5, 0.0, 0.0, 0.0}, precip)
}

func TestFill_DescriptionFilledLikeNumbers(t *testing.T) {
	series := Series{
		{Time: hour(0), Description: s("Snow")},
		{Time: hour(2)},
	}

	got := Fill(series, 1)

	require.Len(t, got, 3)
	require.NotNil(t, got[1].Description)
	assert.Equal(t, "Snow", *got[1].Description)
	assert.Nil(t, got[2].Description, "no later value to back-fill from")
}

func TestFill_TrailingGapStaysMissingBeyondLimit(t *testing.T) {
	series := Series{
		{Time: hour(0), Temperature: f(4)},
		{Time: hour(6)},
	}

	got := Fill(series, 2)

	assertFloats(t, []any{4.0, 4.0, 4.0, nil, nil, nil, nil}, temps(got))
}

func TestFill_DoesNotAliasInput(t *testing.T) {
	series := Series{
		{Time: hour(0), Temperature: f(1)},
		{Time: hour(2), Temperature: f(3)},
	}

	got := Fill(series, 4)
	*got[1].Temperature = 42

	assert.InDelta(t, 1.0, *series[0].Temperature, 1e-9)
}

func TestFill_Empty(t *testing.T) {
	assert.Nil(t, Fill(nil, 4))
	assert.Nil(t, Fill(Series{{Time: hour(0).Add(time.Minute)}}, 4))
}

func TestWeatherIndex_Lookup(t *testing.T) {
	idx := NewWeatherIndex(Series{
		{Time: hour(0), Temperature: f(1)},
		{Time: hour(1), Temperature: f(2)},
	})

	obs, ok := idx.Lookup(hour(1))
	require.True(t, ok)
	assert.InDelta(t, 2.0, *obs.Temperature, 1e-9)

	_, ok = idx.Lookup(hour(5))
	assert.False(t, ok)

	start, end := idx.Span()
	assert.Equal(t, hour(0), start)
	assert.Equal(t, hour(1), end)
	assert.Equal(t, 2, idx.Len())
}
