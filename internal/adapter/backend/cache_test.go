package backend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingBackend struct {
	domain.Backend
	rainfallCalls   int
	boundaryCalls   int
	boundaryErr     error
	boundaryResults []domain.RegionBoundary
}

func (m *countingBackend) FetchRainfall(_ context.Context, start, _ domain.Date) ([]domain.RainfallSample, error) {
	m.rainfallCalls++
	return []domain.RainfallSample{{Date: start, Value: 4.2}}, nil
}

func (m *countingBackend) FetchRegionBoundaries(context.Context) ([]domain.RegionBoundary, error) {
	m.boundaryCalls++
	if m.boundaryErr != nil {
		return nil, m.boundaryErr
	}
	return m.boundaryResults, nil
}

func freezeToday(t *testing.T, year int, month time.Month, day int) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(year, month, day, 9, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })
}

// --- CachedBackend tests ---

func TestCachedBackend_PastRainfallCacheHit(t *testing.T) {
	freezeToday(t, 2024, time.March, 1)
	inner := &countingBackend{}
	cached := NewCachedBackend(inner, 10, observability.NewMetricsForTesting())

	start, end := domain.NewDate(2024, time.January, 1), domain.NewDate(2024, time.January, 3)
	r1, err := cached.FetchRainfall(context.Background(), start, end)
	require.NoError(t, err)
	r2, err := cached.FetchRainfall(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.rainfallCalls, "should only call inner once")
}

func TestCachedBackend_CurrentWindowNotCached(t *testing.T) {
	freezeToday(t, 2024, time.January, 3)
	inner := &countingBackend{}
	cached := NewCachedBackend(inner, 10, observability.NewMetricsForTesting())

	start, end := domain.NewDate(2024, time.January, 1), domain.NewDate(2024, time.January, 3)
	_, _ = cached.FetchRainfall(context.Background(), start, end)
	_, _ = cached.FetchRainfall(context.Background(), start, end)

	assert.Equal(t, 2, inner.rainfallCalls)
}

func TestCachedBackend_DifferentWindowsMiss(t *testing.T) {
	freezeToday(t, 2024, time.March, 1)
	inner := &countingBackend{}
	cached := NewCachedBackend(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.FetchRainfall(context.Background(), domain.NewDate(2024, time.January, 1), domain.NewDate(2024, time.January, 2))
	_, _ = cached.FetchRainfall(context.Background(), domain.NewDate(2024, time.January, 1), domain.NewDate(2024, time.January, 3))

	assert.Equal(t, 2, inner.rainfallCalls)
}

func TestCachedBackend_BoundariesCachedAfterSuccess(t *testing.T) {
	inner := &countingBackend{boundaryErr: errors.New("unavailable")}
	cached := NewCachedBackend(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.FetchRegionBoundaries(context.Background())
	require.Error(t, err)

	inner.boundaryErr = nil
	inner.boundaryResults = []domain.RegionBoundary{{RegionID: "RID-01", Geometry: json.RawMessage(`{}`)}}
	_, err = cached.FetchRegionBoundaries(context.Background())
	require.NoError(t, err)
	got, err := cached.FetchRegionBoundaries(context.Background())
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Equal(t, 2, inner.boundaryCalls, "failure is not cached, success is")
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[string, int](3)

	c.put("a", 1)
	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache[string, int](2)

	c.put("a", 1)
	c.put("b", 2)
	_, _ = c.get("a") // a is now most recent
	c.put("c", 3)

	_, ok := c.get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[string, int](2)

	c.put("a", 1)
	c.put("a", 10)

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_DateWindowKeys(t *testing.T) {
	c := newLRUCache[domain.DateWindow, string](4)
	w := domain.DateWindow{Start: domain.NewDate(2024, time.January, 1), End: domain.NewDate(2024, time.January, 2)}
	c.put(w, "hit")

	parsed := domain.DateWindow{}
	_, err := parsed.SetStartString("2024-01-01")
	require.NoError(t, err)
	_, err = parsed.SetEndString("2024-01-02")
	require.NoError(t, err)

	v, ok := c.get(parsed)
	require.True(t, ok, "parsed and constructed dates must compare equal")
	assert.Equal(t, "hit", v)
}
