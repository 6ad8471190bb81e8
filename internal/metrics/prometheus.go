package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exports Recorder events as Prometheus collectors.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	cacheRequests      *prometheus.CounterVec
	cacheFetchErrors   *prometheus.CounterVec
	cacheFetchDuration *prometheus.HistogramVec
	allocationsCreated *prometheus.CounterVec
	allocationsDeleted prometheus.Counter
	bulkRows           *prometheus.CounterVec
	activityPublished  *prometheus.CounterVec
	activityProcessed  *prometheus.CounterVec
}

// NewPrometheus builds a recorder with its own registry, including Go runtime
// and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &PrometheusRecorder{
		registry: reg,
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagdesk_cache_requests_total",
			Help: "Record cache lookups by entity and result (hit|miss|hydrated).",
		}, []string{"entity", "result"}),
		cacheFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagdesk_cache_fetch_errors_total",
			Help: "Failed refetches of cached entities.",
		}, []string{"entity"}),
		cacheFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tagdesk_cache_fetch_duration_seconds",
			Help:    "Duration of database refetches behind the record cache.",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity"}),
		allocationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagdesk_allocations_created_total",
			Help: "FasTag allocations created by source (manual|bulk).",
		}, []string{"source"}),
		allocationsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tagdesk_allocations_deleted_total",
			Help: "FasTag allocations deleted.",
		}),
		bulkRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagdesk_bulk_rows_total",
			Help: "Rows processed by bulk spreadsheet runs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		activityPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagdesk_activity_events_published_total",
			Help: "Activity events published to the stream.",
		}, []string{"status"}),
		activityProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagdesk_activity_events_processed_total",
			Help: "Activity events persisted by the worker.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		p.cacheRequests,
		p.cacheFetchErrors,
		p.cacheFetchDuration,
		p.allocationsCreated,
		p.allocationsDeleted,
		p.bulkRows,
		p.activityPublished,
		p.activityProcessed,
	)

	return p
}

// Handler returns the HTTP handler serving this recorder's registry.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) IncCacheHit(entity string) {
	p.cacheRequests.WithLabelValues(entity, "hit").Inc()
}

func (p *PrometheusRecorder) IncCacheMiss(entity string) {
	p.cacheRequests.WithLabelValues(entity, "miss").Inc()
}

func (p *PrometheusRecorder) IncCacheHydrated(entity string) {
	p.cacheRequests.WithLabelValues(entity, "hydrated").Inc()
}

func (p *PrometheusRecorder) IncCacheFetchError(entity string) {
	p.cacheFetchErrors.WithLabelValues(entity).Inc()
}

func (p *PrometheusRecorder) ObserveCacheFetchDuration(entity string, duration time.Duration) {
	p.cacheFetchDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncAllocationCreated(source string) {
	p.allocationsCreated.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) IncAllocationDeleted() {
	p.allocationsDeleted.Inc()
}

func (p *PrometheusRecorder) ObserveBulkRun(kind string, succeeded, failed int) {
	p.bulkRows.WithLabelValues(kind, "succeeded").Add(float64(succeeded))
	p.bulkRows.WithLabelValues(kind, "failed").Add(float64(failed))
}

func (p *PrometheusRecorder) IncActivityEventPublished(status string) {
	p.activityPublished.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncActivityEventProcessed(status string) {
	p.activityProcessed.WithLabelValues(status).Inc()
}
