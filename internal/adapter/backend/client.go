// Package backend implements domain.Backend against the hydro data HTTP API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
)

// Endpoint paths relative to the base URL.
const (
	pathStationCount     = "/station_count"
	pathRainfall         = "/rainfall"
	pathRegionalCounts   = "/regional_counts"
	pathRegionBoundaries = "/region_boundaries"
)

// Client implements domain.Backend over HTTP.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	retryMaxElapsed time.Duration
	logger          *slog.Logger
	metrics         *observability.Metrics
}

// NewClient creates a backend client. retryMaxElapsed bounds retries of
// throttled and 5xx responses; zero disables retrying.
func NewClient(baseURL string, timeout, retryMaxElapsed time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryMaxElapsed: retryMaxElapsed,
		logger:          logger,
		metrics:         metrics,
	}
}

// FetchStations lists the stations of one category.
func (c *Client) FetchStations(ctx context.Context, category domain.Category) ([]domain.Station, error) {
	var rows []stationRow
	if err := c.getJSON(ctx, domain.SourceStations, "/"+category.WireName(), nil, &rows); err != nil {
		return nil, err
	}
	stations := make([]domain.Station, len(rows))
	for i, r := range rows {
		stations[i] = r.toDomain()
	}
	return stations, nil
}

// FetchStationCounts returns totals for every category.
func (c *Client) FetchStationCounts(ctx context.Context) (domain.StationCount, error) {
	var body countBody
	if err := c.getJSON(ctx, domain.SourceStationCounts, pathStationCount, nil, &body); err != nil {
		return nil, err
	}
	return domain.StationCount{
		domain.CategoryGate:        body.Infrastruc,
		domain.CategoryWeir:        body.Weir,
		domain.CategoryPumpStation: body.PumpStation,
	}, nil
}

// FetchRainfall returns the samples between start and end inclusive.
func (c *Client) FetchRainfall(ctx context.Context, start, end domain.Date) ([]domain.RainfallSample, error) {
	params := url.Values{
		"start": {start.String()},
		"end":   {end.String()},
	}
	var rows []rainfallRow
	if err := c.getJSON(ctx, domain.SourceRainfall, pathRainfall, params, &rows); err != nil {
		return nil, err
	}
	samples := make([]domain.RainfallSample, 0, len(rows))
	for _, r := range rows {
		d, err := parseSampleDate(r.Date)
		if err != nil {
			return nil, &domain.TransportError{Source: domain.SourceRainfall, Err: err}
		}
		samples = append(samples, domain.RainfallSample{Date: d, Value: r.Value})
	}
	return samples, nil
}

// FetchRegionalAggregates returns per-region structure counts.
func (c *Client) FetchRegionalAggregates(ctx context.Context) ([]domain.RegionAggregate, error) {
	var rows []regionRow
	if err := c.getJSON(ctx, domain.SourceRegionalAggregates, pathRegionalCounts, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.RegionAggregate, len(rows))
	for i, r := range rows {
		out[i] = domain.RegionAggregate{
			RegionID:         string(r.RID),
			GateCount:        r.Gate,
			WeirCount:        r.Weir,
			PumpStationCount: r.PumpStation,
		}
	}
	return out, nil
}

// FetchRegionBoundaries returns region geometries as opaque JSON.
func (c *Client) FetchRegionBoundaries(ctx context.Context) ([]domain.RegionBoundary, error) {
	var rows []boundaryRow
	if err := c.getJSON(ctx, domain.SourceRegionBoundaries, pathRegionBoundaries, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.RegionBoundary, len(rows))
	for i, r := range rows {
		out[i] = domain.RegionBoundary{RegionID: string(r.RID), Geometry: r.Geometry}
	}
	return out, nil
}

// CheckReadiness reports whether the backend answers the counts endpoint.
func (c *Client) CheckReadiness(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathStationCount, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend not ready: status %d", resp.StatusCode)
	}
	return nil
}

// getJSON fetches path and decodes the body into out. Every failure is
// returned as a *domain.TransportError for src.
func (c *Client) getJSON(ctx context.Context, src domain.Source, path string, params url.Values, out any) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	start := time.Now()
	body, err := c.fetchWithRetry(ctx, fullURL)
	c.metrics.BackendDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.BackendRequests.WithLabelValues(path, "error").Inc()
		return &domain.TransportError{Source: src, Err: err}
	}

	if err := json.NewDecoder(bytes.NewReader(body)).Decode(out); err != nil {
		c.metrics.BackendRequests.WithLabelValues(path, "error").Inc()
		return &domain.TransportError{Source: src, Err: fmt.Errorf("decode response: %w", err)}
	}
	c.metrics.BackendRequests.WithLabelValues(path, "success").Inc()
	return nil
}

// fetchWithRetry GETs fullURL. 429 and 5xx responses are retried with
// exponential backoff; everything else fails at once.
func (c *Client) fetchWithRetry(ctx context.Context, fullURL string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("request %s: %w", req.URL.Path, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			b, _ := io.ReadAll(resp.Body)
			return &statusError{code: resp.StatusCode, body: string(b)}
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(&statusError{code: resp.StatusCode, body: string(b)})
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	var bo backoff.BackOff = &backoff.StopBackOff{}
	if c.retryMaxElapsed > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.MaxElapsedTime = c.retryMaxElapsed
		bo = exp
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("backend request failed, retrying", "url", fullURL, "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

// statusError is a non-200 answer from the backend.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend API error: status %d: %s", e.code, e.body)
}

// StatusCode returns the HTTP status of a backend error, or 0 if err did not
// come from a backend response.
func StatusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

func parseSampleDate(s string) (domain.Date, error) {
	// Timestamps such as "2024-01-02T00:00:00Z" are cut to their date.
	if len(s) > len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	return domain.ParseDate(s)
}

// Backend API response types.

type stationRow struct {
	Name     string `json:"infrastruc_name"`
	District string `json:"infrastruc_district"`
	Province string `json:"infrastruc_province"`
	Type     string `json:"infrastruc_type"`
	Lat      string `json:"coordinates_lat"`
	Lon      string `json:"coordinates_long"`
}

func (r stationRow) toDomain() domain.Station {
	return domain.Station{
		Name:     r.Name,
		District: r.District,
		Province: r.Province,
		Type:     r.Type,
		Lat:      r.Lat,
		Lon:      r.Lon,
	}
}

type countBody struct {
	Infrastruc  int `json:"infrastruc"`
	Weir        int `json:"weir"`
	PumpStation int `json:"pumpstation"`
}

type rainfallRow struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type regionRow struct {
	RID         flexibleID `json:"rid"`
	Gate        int        `json:"gate"`
	Weir        int        `json:"weir"`
	PumpStation int        `json:"pumpstation"`
}

type boundaryRow struct {
	RID      flexibleID      `json:"rid"`
	Geometry json.RawMessage `json:"geometry"`
}

// flexibleID accepts a region id sent either as a JSON string or a number.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("region id: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("region id %q: %w", n, err)
	}
	*f = flexibleID(n.String())
	return nil
}
