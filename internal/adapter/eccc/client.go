package eccc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/observability"
)

// notFoundMarker is what the bulk endpoint serves instead of a CSV for unknown station-months.
var notFoundMarker = []byte("Station not found")

// Client implements domain.StationFetcher against the ECCC bulk climate data endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an ECCC bulk data client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchMonth downloads one month of hourly observations as raw CSV.
// It returns domain.ErrStationNotFound when the endpoint has no data for the month.
func (c *Client) FetchMonth(ctx context.Context, m domain.StationMonth) ([]byte, error) {
	start := time.Now()
	body, err := c.doRequest(ctx, c.monthURL(m))
	c.metrics.StationRequestDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.StationRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", m, err)
	case bytes.Contains(body, notFoundMarker):
		c.metrics.StationRequests.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("fetch %s: %w", m, domain.ErrStationNotFound)
	}

	c.metrics.StationRequests.WithLabelValues("success").Inc()
	c.logger.Debug("station month downloaded", "station", m.Station.ID, "year", m.Year, "month", m.Month, "bytes", len(body))
	return body, nil
}

func (c *Client) monthURL(m domain.StationMonth) string {
	params := url.Values{
		"format":    {"csv"},
		"stationID": {strconv.Itoa(m.Station.ID)},
		"Year":      {strconv.Itoa(m.Year)},
		"Month":     {strconv.Itoa(m.Month)},
		"timeframe": {"1"},
		"submit":    {"Download Data"},
	}
	return c.baseURL + "?" + params.Encode()
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("climate data request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("climate data API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
