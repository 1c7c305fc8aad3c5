package backend

import (
	"context"
	"sync"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
)

// CachedBackend wraps a Backend with caches for data that does not change:
// rainfall for windows that ended before today, and region boundaries.
// Everything else passes straight through.
type CachedBackend struct {
	domain.Backend
	rainfall *lruCache[domain.DateWindow, []domain.RainfallSample]
	metrics  *observability.Metrics

	mu         sync.Mutex
	boundaries []domain.RegionBoundary
}

// NewCachedBackend creates a cache decorator around a backend.
func NewCachedBackend(inner domain.Backend, maxRainfallEntries int, metrics *observability.Metrics) *CachedBackend {
	return &CachedBackend{
		Backend:  inner,
		rainfall: newLRUCache[domain.DateWindow, []domain.RainfallSample](maxRainfallEntries),
		metrics:  metrics,
	}
}

func (c *CachedBackend) FetchRainfall(ctx context.Context, start, end domain.Date) ([]domain.RainfallSample, error) {
	// A window reaching today or later may still receive samples.
	if !end.Before(domain.Today()) {
		return c.Backend.FetchRainfall(ctx, start, end)
	}

	key := domain.DateWindow{Start: start, End: end}
	if samples, ok := c.rainfall.get(key); ok {
		c.metrics.BackendCache.WithLabelValues(string(domain.SourceRainfall), "hit").Inc()
		return samples, nil
	}
	c.metrics.BackendCache.WithLabelValues(string(domain.SourceRainfall), "miss").Inc()

	samples, err := c.Backend.FetchRainfall(ctx, start, end)
	if err != nil {
		return nil, err
	}
	c.rainfall.put(key, samples)
	return samples, nil
}

func (c *CachedBackend) FetchRegionBoundaries(ctx context.Context) ([]domain.RegionBoundary, error) {
	c.mu.Lock()
	cached := c.boundaries
	c.mu.Unlock()
	if cached != nil {
		c.metrics.BackendCache.WithLabelValues(string(domain.SourceRegionBoundaries), "hit").Inc()
		return cached, nil
	}
	c.metrics.BackendCache.WithLabelValues(string(domain.SourceRegionBoundaries), "miss").Inc()

	boundaries, err := c.Backend.FetchRegionBoundaries(ctx)
	if err != nil {
		return nil, err
	}
	if len(boundaries) > 0 {
		c.mu.Lock()
		c.boundaries = boundaries
		c.mu.Unlock()
	}
	return boundaries, nil
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[K comparable, V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[K]*entry[K, V]
	head       *entry[K, V] // most recently used
	tail       *entry[K, V] // least recently used
}

type entry[K comparable, V any] struct {
	key   K
	value V
	prev  *entry[K, V]
	next  *entry[K, V]
}

func newLRUCache[K comparable, V any](maxEntries int) *lruCache[K, V] {
	return &lruCache[K, V]{
		maxEntries: maxEntries,
		entries:    make(map[K]*entry[K, V]),
	}
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[K, V]) addToFront(e *entry[K, V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[K, V]) remove(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[K, V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
