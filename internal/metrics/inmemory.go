package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	CacheHits          map[string]uint64
	CacheMisses        map[string]uint64
	CacheHydrations    map[string]uint64
	CacheFetchErrors   map[string]uint64
	CacheFetchCount    uint64
	AllocationsCreated uint64
	AllocationsDeleted uint64
	BulkSucceeded      uint64
	BulkFailed         uint64
	ActivityPublished  uint64
	ActivityProcessed  uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu               sync.Mutex
	cacheHits        map[string]uint64
	cacheMisses      map[string]uint64
	cacheHydrations  map[string]uint64
	cacheFetchErrors map[string]uint64

	cacheFetchCount    uint64
	allocationsCreated uint64
	allocationsDeleted uint64
	bulkSucceeded      uint64
	bulkFailed         uint64
	activityPublished  uint64
	activityProcessed  uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		cacheHits:        make(map[string]uint64),
		cacheMisses:      make(map[string]uint64),
		cacheHydrations:  make(map[string]uint64),
		cacheFetchErrors: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		CacheHits:          copyCounts(m.cacheHits),
		CacheMisses:        copyCounts(m.cacheMisses),
		CacheHydrations:    copyCounts(m.cacheHydrations),
		CacheFetchErrors:   copyCounts(m.cacheFetchErrors),
		CacheFetchCount:    atomic.LoadUint64(&m.cacheFetchCount),
		AllocationsCreated: atomic.LoadUint64(&m.allocationsCreated),
		AllocationsDeleted: atomic.LoadUint64(&m.allocationsDeleted),
		BulkSucceeded:      atomic.LoadUint64(&m.bulkSucceeded),
		BulkFailed:         atomic.LoadUint64(&m.bulkFailed),
		ActivityPublished:  atomic.LoadUint64(&m.activityPublished),
		ActivityProcessed:  atomic.LoadUint64(&m.activityProcessed),
	}
}

// IncCacheHit increments the per-entity cache hit counter.
func (m *InMemoryRecorder) IncCacheHit(entity string) {
	m.inc(m.cacheHits, entity)
}

// IncCacheMiss increments the per-entity cache miss counter.
func (m *InMemoryRecorder) IncCacheMiss(entity string) {
	m.inc(m.cacheMisses, entity)
}

// IncCacheHydrated increments the per-entity mirror hydration counter.
func (m *InMemoryRecorder) IncCacheHydrated(entity string) {
	m.inc(m.cacheHydrations, entity)
}

// IncCacheFetchError increments the per-entity fetch error counter.
func (m *InMemoryRecorder) IncCacheFetchError(entity string) {
	m.inc(m.cacheFetchErrors, entity)
}

// ObserveCacheFetchDuration records a fetch.
func (m *InMemoryRecorder) ObserveCacheFetchDuration(entity string, duration time.Duration) {
	atomic.AddUint64(&m.cacheFetchCount, 1)
}

// IncAllocationCreated increments allocation created counter.
func (m *InMemoryRecorder) IncAllocationCreated(source string) {
	atomic.AddUint64(&m.allocationsCreated, 1)
}

// IncAllocationDeleted increments allocation deleted counter.
func (m *InMemoryRecorder) IncAllocationDeleted() {
	atomic.AddUint64(&m.allocationsDeleted, 1)
}

// ObserveBulkRun adds the outcome of a bulk run.
func (m *InMemoryRecorder) ObserveBulkRun(kind string, succeeded, failed int) {
	atomic.AddUint64(&m.bulkSucceeded, uint64(succeeded))
	atomic.AddUint64(&m.bulkFailed, uint64(failed))
}

// IncActivityEventPublished increments the activity publish counter.
func (m *InMemoryRecorder) IncActivityEventPublished(status string) {
	atomic.AddUint64(&m.activityPublished, 1)
}

// IncActivityEventProcessed increments the activity processed counter.
func (m *InMemoryRecorder) IncActivityEventProcessed(status string) {
	atomic.AddUint64(&m.activityProcessed, 1)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, entity string) {
	m.mu.Lock()
	counts[entity]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
