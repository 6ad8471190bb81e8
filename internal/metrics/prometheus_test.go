package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder_CacheCounters(t *testing.T) {
	p := NewPrometheus()

	p.IncCacheHit("users")
	p.IncCacheHit("users")
	p.IncCacheMiss("users")
	p.IncCacheHydrated("transactions")

	if got := testutil.ToFloat64(p.cacheRequests.WithLabelValues("users", "hit")); got != 2 {
		t.Errorf("hit counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.cacheRequests.WithLabelValues("users", "miss")); got != 1 {
		t.Errorf("miss counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.cacheRequests.WithLabelValues("transactions", "hydrated")); got != 1 {
		t.Errorf("hydrated counter = %v, want 1", got)
	}
}

func TestPrometheusRecorder_BulkRun(t *testing.T) {
	p := NewPrometheus()

	p.ObserveBulkRun("allocate", 8, 2)

	if got := testutil.ToFloat64(p.bulkRows.WithLabelValues("allocate", "succeeded")); got != 8 {
		t.Errorf("succeeded = %v, want 8", got)
	}
	if got := testutil.ToFloat64(p.bulkRows.WithLabelValues("allocate", "failed")); got != 2 {
		t.Errorf("failed = %v, want 2", got)
	}
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	p := NewPrometheus()
	p.ObserveCacheFetchDuration("users", 20*time.Millisecond)
	p.IncAllocationDeleted()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"tagdesk_cache_fetch_duration_seconds", "tagdesk_allocations_deleted_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	m := NewInMemory()
	m.IncCacheHit("users")
	m.IncCacheMiss("users")
	m.IncCacheMiss("users")
	m.IncAllocationCreated("bulk")
	m.ObserveBulkRun("delete", 3, 1)

	snap := m.Snapshot()
	if snap.CacheHits["users"] != 1 || snap.CacheMisses["users"] != 2 {
		t.Errorf("unexpected cache counters: %+v", snap)
	}
	if snap.AllocationsCreated != 1 {
		t.Errorf("AllocationsCreated = %d, want 1", snap.AllocationsCreated)
	}
	if snap.BulkSucceeded != 3 || snap.BulkFailed != 1 {
		t.Errorf("bulk counters = %d/%d, want 3/1", snap.BulkSucceeded, snap.BulkFailed)
	}
}
