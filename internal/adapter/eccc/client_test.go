package eccc

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/observability"
)

const monthCSV = "\"Date/Time (LST)\",\"Temp (°C)\",\"Precip. Amount (mm)\",\"Visibility (km)\",\"Weather\"\n" +
	"\"2022-01-01 00:00\",\"-0.4\",\"0.0\",\"16.1\",\"NA\"\n"

var january2022 = domain.StationMonth{Station: domain.PearsonAirport, Year: 2022, Month: 1}

func testClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_FetchMonth_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "csv", q.Get("format"))
		assert.Equal(t, "51459", q.Get("stationID"))
		assert.Equal(t, "2022", q.Get("Year"))
		assert.Equal(t, "1", q.Get("Month"))
		assert.Equal(t, "1", q.Get("timeframe"))
		assert.Equal(t, "Download Data", q.Get("submit"))
		_, _ = w.Write([]byte(monthCSV))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	body, err := c.FetchMonth(context.Background(), january2022)
	require.NoError(t, err)
	assert.Equal(t, monthCSV, string(body))
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.StationRequests.WithLabelValues("success")), 0)

	obs, err := domain.ParseStationPayload(body)
	require.NoError(t, err)
	assert.Len(t, obs, 1)
}

func TestClient_FetchMonth_StationNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Station not found</p></body></html>"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.FetchMonth(context.Background(), january2022)
	require.ErrorIs(t, err, domain.ErrStationNotFound)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.StationRequests.WithLabelValues("not_found")), 0)
}

func TestClient_FetchMonth_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.FetchMonth(context.Background(), january2022)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.NotErrorIs(t, err, domain.ErrStationNotFound)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.StationRequests.WithLabelValues("error")), 0)
}

func TestClient_FetchMonth_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 50*time.Millisecond)
	_, err := c.FetchMonth(context.Background(), january2022)
	require.Error(t, err)
}
