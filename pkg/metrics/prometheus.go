// Package metrics provides Prometheus metrics for the tierlist service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Refresh pipeline
	refreshRuns     *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	specsPersisted  *prometheus.CounterVec
	specsScored     *prometheus.GaugeVec
	lastSuccess     *prometheus.GaugeVec
	persistLatency  prometheus.Histogram

	// Providers
	providerEntries *prometheus.CounterVec

	// Upstream fetch and cache
	upstreamRequests *prometheus.CounterVec
	upstreamRetries  *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	cacheErrors      *prometheus.CounterVec

	// Queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	jobsEnqueued  *prometheus.CounterVec
	jobsDropped   *prometheus.CounterVec
	workerActive  prometheus.Gauge
	workerJobs    *prometheus.CounterVec
	workerRetries prometheus.Counter
	workerLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	uptimeSeconds        prometheus.Gauge
}

var (
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry
	globalManager  = NewManager(WithPrometheusRegistry(customRegistry))
)

// NewManager creates a metrics manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tierlist",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.refreshRuns = m.counterVec("refresh_runs_total", "Refresh runs by requested mode and terminal status", "mode", "status")
	m.refreshDuration = m.histogramVec("refresh_duration_milliseconds", "Wall time of refresh runs", "mode")
	m.specsPersisted = m.counterVec("specs_persisted_total", "Spec rows written to snapshots", "mode")
	m.specsScored = m.gaugeVec("specs_scored", "Specs that survived scoring in the last run", "mode")
	m.lastSuccess = m.gaugeVec("last_snapshot_unixtime", "Creation time of the latest snapshot", "mode")
	m.persistLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "snapshot_persist_milliseconds",
		Help:    "Latency of the snapshot write transaction",
		Buckets: m.histogramBuckets,
	})

	m.providerEntries = m.counterVec("provider_entries_total", "Performance entries produced by providers", "provider")

	m.upstreamRequests = m.counterVec("upstream_requests_total", "Upstream HTTP attempts by cache namespace and outcome", "namespace", "outcome")
	m.upstreamRetries = m.counterVec("upstream_retries_total", "Upstream retries scheduled", "namespace")
	m.upstreamLatency = m.histogramVec("upstream_request_milliseconds", "Upstream HTTP attempt latency", "namespace")
	m.cacheHits = m.counterVec("cache_hits_total", "Fetch cache hits", "namespace")
	m.cacheMisses = m.counterVec("cache_misses_total", "Fetch cache misses", "namespace")
	m.cacheErrors = m.counterVec("cache_errors_total", "Cache store failures", "op")

	m.queueSize = m.gauge("queue_size", "Refresh jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Refresh queue capacity")
	m.jobsEnqueued = m.counterVec("jobs_enqueued_total", "Refresh jobs accepted by trigger", "trigger")
	m.jobsDropped = m.counterVec("jobs_dropped_total", "Refresh jobs rejected", "reason")
	m.workerActive = m.gauge("worker_active", "Workers currently running a refresh")
	m.workerJobs = m.counterVec("worker_jobs_total", "Refresh jobs finished by outcome", "outcome")
	m.workerRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "worker_retries_total",
		Help: "Refresh job attempts retried after failure",
	})
	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "worker_job_milliseconds",
		Help:    "Time from dequeue to job completion including retries",
		Buckets: m.histogramBuckets,
	})

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request latency", "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.uptimeSeconds = m.gauge("uptime_seconds", "Seconds since process start")
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

// RecordRefreshRun records a finished refresh run.
func RecordRefreshRun(mode, status string, duration time.Duration) {
	globalManager.refreshRuns.WithLabelValues(mode, status).Inc()
	globalManager.refreshDuration.WithLabelValues(mode).Observe(float64(duration.Milliseconds()))
}

// RecordSnapshotPersisted records a committed snapshot.
func RecordSnapshotPersisted(mode string, specs int, latency time.Duration, createdAt time.Time) {
	globalManager.specsPersisted.WithLabelValues(mode).Add(float64(specs))
	globalManager.persistLatency.Observe(float64(latency.Milliseconds()))
	globalManager.lastSuccess.WithLabelValues(mode).Set(float64(createdAt.Unix()))
}

// UpdateSpecsScored sets the number of specs that survived scoring.
func UpdateSpecsScored(mode string, n int) {
	globalManager.specsScored.WithLabelValues(mode).Set(float64(n))
}

// RecordProviderEntries counts entries produced by a provider.
func RecordProviderEntries(provider string, n int) {
	globalManager.providerEntries.WithLabelValues(provider).Add(float64(n))
}

// RecordUpstreamRequest records one upstream HTTP attempt.
func RecordUpstreamRequest(namespace, outcome string, latency time.Duration) {
	globalManager.upstreamRequests.WithLabelValues(namespace, outcome).Inc()
	globalManager.upstreamLatency.WithLabelValues(namespace).Observe(float64(latency.Milliseconds()))
}

// RecordUpstreamRetry counts a scheduled retry.
func RecordUpstreamRetry(namespace string) {
	globalManager.upstreamRetries.WithLabelValues(namespace).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(namespace string, hit bool) {
	if hit {
		globalManager.cacheHits.WithLabelValues(namespace).Inc()
		return
	}
	globalManager.cacheMisses.WithLabelValues(namespace).Inc()
}

// RecordCacheError counts a failed cache get or set.
func RecordCacheError(op string) {
	globalManager.cacheErrors.WithLabelValues(op).Inc()
}

// UpdateQueueSize sets the current queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordJobEnqueued counts an accepted job.
func RecordJobEnqueued(trigger string) {
	globalManager.jobsEnqueued.WithLabelValues(trigger).Inc()
}

// RecordJobDropped counts a rejected job (duplicate, queue_full, closed).
func RecordJobDropped(reason string) {
	globalManager.jobsDropped.WithLabelValues(reason).Inc()
}

// AddWorkerActive adjusts the number of busy workers.
func AddWorkerActive(delta int) {
	globalManager.workerActive.Add(float64(delta))
}

// RecordWorkerJob records a finished job and its total latency.
func RecordWorkerJob(outcome string, latency time.Duration) {
	globalManager.workerJobs.WithLabelValues(outcome).Inc()
	globalManager.workerLatency.Observe(float64(latency.Milliseconds()))
}

// RecordWorkerRetry counts a retried job attempt.
func RecordWorkerRetry() {
	globalManager.workerRetries.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// UpdateUptime sets the process uptime.
func UpdateUptime(d time.Duration) {
	globalManager.uptimeSeconds.Set(d.Seconds())
}

// GetRegistry returns the registry backing the package-level functions.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
