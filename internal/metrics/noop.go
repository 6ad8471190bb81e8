package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncCacheHit is a no-op.
func (n *NoopRecorder) IncCacheHit(entity string) {}

// IncCacheMiss is a no-op.
func (n *NoopRecorder) IncCacheMiss(entity string) {}

// IncCacheHydrated is a no-op.
func (n *NoopRecorder) IncCacheHydrated(entity string) {}

// IncCacheFetchError is a no-op.
func (n *NoopRecorder) IncCacheFetchError(entity string) {}

// ObserveCacheFetchDuration is a no-op.
func (n *NoopRecorder) ObserveCacheFetchDuration(entity string, duration time.Duration) {}

// IncAllocationCreated is a no-op.
func (n *NoopRecorder) IncAllocationCreated(source string) {}

// IncAllocationDeleted is a no-op.
func (n *NoopRecorder) IncAllocationDeleted() {}

// ObserveBulkRun is a no-op.
func (n *NoopRecorder) ObserveBulkRun(kind string, succeeded, failed int) {}

// IncActivityEventPublished is a no-op.
func (n *NoopRecorder) IncActivityEventPublished(status string) {}

// IncActivityEventProcessed is a no-op.
func (n *NoopRecorder) IncActivityEventProcessed(status string) {}
