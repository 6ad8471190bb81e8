// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Record cache metrics
	IncCacheHit(entity string)
	IncCacheMiss(entity string)
	IncCacheHydrated(entity string)
	IncCacheFetchError(entity string)
	ObserveCacheFetchDuration(entity string, duration time.Duration)

	// Inventory metrics
	IncAllocationCreated(source string) // source: "manual" or "bulk"
	IncAllocationDeleted()
	ObserveBulkRun(kind string, succeeded, failed int) // kind: "allocate" or "delete"

	// Activity pipeline metrics
	IncActivityEventPublished(status string) // status: "success" or "dropped"
	IncActivityEventProcessed(status string) // status: "success" or "failed"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
