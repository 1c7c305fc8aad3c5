package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/hydro-dashboard/internal/adapter/http"
	"github.com/couchcryptid/hydro-dashboard/internal/adapter/sse"
	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
	"github.com/couchcryptid/hydro-dashboard/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

// stubBackend serves fixed data for every collection.
type stubBackend struct{}

func (stubBackend) FetchStations(_ context.Context, c domain.Category) ([]domain.Station, error) {
	return []domain.Station{
		{Name: "Chao Phraya Dam", District: "Sapphaya", Province: "Chai Nat", Type: string(c), Lat: "15.16", Lon: "100.18"},
		{Name: "Rama VI Barrage", District: "Bang Sai", Province: "Ayutthaya", Type: string(c), Lat: "14.24", Lon: "100.51"},
		{Name: "Unmapped", District: "Mueang", Province: "Chai Nat", Type: string(c), Lat: "", Lon: ""},
	}, nil
}

func (stubBackend) FetchStationCounts(context.Context) (domain.StationCount, error) {
	return domain.StationCount{domain.CategoryGate: 3, domain.CategoryWeir: 1, domain.CategoryPumpStation: 2}, nil
}

func (stubBackend) FetchRainfall(_ context.Context, start, end domain.Date) ([]domain.RainfallSample, error) {
	var out []domain.RainfallSample
	for d := start; !d.After(end); d = d.AddDays(1) {
		out = append(out, domain.RainfallSample{Date: d, Value: float64(d.Time().Day())})
	}
	return out, nil
}

func (stubBackend) FetchRegionalAggregates(context.Context) ([]domain.RegionAggregate, error) {
	return []domain.RegionAggregate{
		{RegionID: "RID-01", GateCount: 4, WeirCount: 1, PumpStationCount: 2},
		{RegionID: "RID-10", GateCount: 1, WeirCount: 0, PumpStationCount: 3},
	}, nil
}

func (stubBackend) FetchRegionBoundaries(context.Context) ([]domain.RegionBoundary, error) {
	return []domain.RegionBoundary{{RegionID: "RID-01", Geometry: json.RawMessage(`{"type":"Point","coordinates":[100,15]}`)}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServerWith(t *testing.T, readyErr error, cfg session.RegistryConfig) (*httpadapter.Server, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(stubBackend{}, cfg, discardLogger(), observability.NewMetricsForTesting())
	t.Cleanup(registry.Close)

	hub := sse.NewHub(discardLogger())
	registry.Subscribe(hub.Listen)

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:           ":0",
		Registry:       registry,
		Hub:            hub,
		Ready:          &mockReadiness{err: readyErr},
		AllowedOrigins: []string{"http://localhost:3001"},
		Logger:         discardLogger(),
	})
	return srv, registry
}

func newTestServer(t *testing.T, readyErr error) *httpadapter.Server {
	t.Helper()
	srv, _ := newTestServerWith(t, readyErr, session.RegistryConfig{})
	return srv
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) session.View {
	t.Helper()
	var v session.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func createSession(t *testing.T, srv http.Handler) session.View {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/sessions?wait=true", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeView(t, rec)
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(t, newTestServer(t, fmt.Errorf("backend unreachable")), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "backend unreachable", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- categories ---

func TestCategories(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 3)
	assert.Equal(t, "gate", body[0]["id"])
	assert.Equal(t, "infrastruc", body[0]["wire_name"])
	assert.Equal(t, true, body[0]["default"])
	assert.Equal(t, "ฝาย", body[1]["label"])
}

// --- sessions ---

func TestCreateSession_WaitReturnsLoadedView(t *testing.T) {
	v := createSession(t, newTestServer(t, nil))

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, domain.CategoryGate, v.Category)
	assert.Len(t, v.Stations, 3)
	assert.Len(t, v.Map.Markers.Markers, 2)
	assert.Equal(t, 1, v.Map.Markers.Dropped)
	assert.Equal(t, 3, v.Counts.Get(domain.CategoryGate))
	assert.Equal(t, []string{"1", "10"}, v.Regions.Labels)
	assert.Len(t, v.Sources, 5)
}

func TestGetSession(t *testing.T) {
	srv := newTestServer(t, nil)
	created := createSession(t, srv)

	rec := do(t, srv, http.MethodGet, "/api/sessions/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeView(t, rec).ID)
}

func TestUnknownSessionReturns404(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/sessions/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPut, "/api/sessions/does-not-exist/search", `{"query":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)

	rec := do(t, srv, http.MethodDelete, "/api/sessions/"+v.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/sessions/"+v.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectCategory(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)

	rec := do(t, srv, http.MethodPut, "/api/sessions/"+v.ID+"/category?wait=true", `{"category":"weir"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeView(t, rec)
	assert.Equal(t, domain.CategoryWeir, got.Category)
	assert.Equal(t, domain.CategoryWeir, got.StationsCategory)
	assert.Equal(t, "weir", got.Stations[0].Type)
}

func TestSelectCategory_InvalidReturns400(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)

	rec := do(t, srv, http.MethodPut, "/api/sessions/"+v.ID+"/category", `{"category":"canal"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "invalid station category")
}

func TestMalformedBodyReturns400(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)

	for _, body := range []string{`{`, `{"unknown":1}`, ``} {
		rec := do(t, srv, http.MethodPut, "/api/sessions/"+v.ID+"/search", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestSetSearch(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)

	rec := do(t, srv, http.MethodPut, "/api/sessions/"+v.ID+"/search", `{"query":"chai nat"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeView(t, rec)
	assert.Equal(t, "chai nat", got.Search)
	require.Len(t, got.Stations, 2)
	assert.Equal(t, "Chao Phraya Dam", got.Stations[0].Name)
	assert.Equal(t, "Unmapped", got.Stations[1].Name)
	assert.Len(t, got.Map.Markers.Markers, 1)
}

func TestWindowEdits(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)
	base := "/api/sessions/" + v.ID

	rec := do(t, srv, http.MethodPut, base+"/window/start", `{"date":"2024-01-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeView(t, rec).Rainfall.Values, "incomplete window has no rainfall")

	rec = do(t, srv, http.MethodPut, base+"/window/end?wait=true", `{"date":"2024-01-10"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeView(t, rec)
	assert.Equal(t, "2024-01-07", got.Window.Start.String(), "start is pulled up to keep the span")
	assert.Equal(t, "2024-01-10", got.Window.End.String())
	assert.Equal(t, []string{"2024-01-07", "2024-01-08", "2024-01-09", "2024-01-10"}, got.Rainfall.Labels)
}

func TestWindowEdit_InvalidDateReturns400(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)

	rec := do(t, srv, http.MethodPut, "/api/sessions/"+v.ID+"/window/start", `{"date":"01/02/2024"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMutationsAreRateLimited(t *testing.T) {
	srv, _ := newTestServerWith(t, nil, session.RegistryConfig{RateLimit: rate.Every(time.Hour), RateBurst: 1})
	v := createSession(t, srv)

	rec := do(t, srv, http.MethodPut, "/api/sessions/"+v.ID+"/search", `{"query":"a"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPut, "/api/sessions/"+v.ID+"/search", `{"query":"b"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = do(t, srv, http.MethodGet, "/api/sessions/"+v.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

// --- CORS ---

func TestCORSAllowedOrigin(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3001", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnknownOrigin(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// --- charts ---

func TestRainfallChart(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)
	base := "/api/sessions/" + v.ID

	rec := do(t, srv, http.MethodGet, base+"/charts/rainfall.png", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	do(t, srv, http.MethodPut, base+"/window/start", `{"date":"2024-01-01"}`)
	do(t, srv, http.MethodPut, base+"/window/end?wait=true", `{"date":"2024-01-03"}`)

	rec = do(t, srv, http.MethodGet, base+"/charts/rainfall.png?width=400&height=200", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestRegionsChart(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)

	rec := do(t, srv, http.MethodGet, "/api/sessions/"+v.ID+"/charts/regions.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestChartBadSize(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)

	rec := do(t, srv, http.MethodGet, "/api/sessions/"+v.ID+"/charts/regions.png?width=huge", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- events ---

func TestEventsStream(t *testing.T) {
	srv := newTestServer(t, nil)
	v := createSession(t, srv)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sessions/"+v.ID+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event := readEventType(t, reader)
	assert.Equal(t, "connected", event)

	rec := do(t, srv, http.MethodPut, "/api/sessions/"+v.ID+"/search", `{"query":"dam"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "input_changed", readEventType(t, reader))
}

// readEventType returns the event name of the next SSE block.
func readEventType(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "event: "); ok {
			return name
		}
	}
}
