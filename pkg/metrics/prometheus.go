// Package metrics provides Prometheus metrics for the gradeboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every gradeboard collector.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion
	resultsIngested  prometheus.Counter
	resultsDuplicate prometheus.Counter
	resultsStored    prometheus.Counter

	// Normalization
	normalizations       *prometheus.CounterVec
	statusAssigned       *prometheus.CounterVec
	normalizationLatency prometheus.Histogram

	// Repository tiers
	cacheFallbacks   *prometheus.CounterVec
	cacheWrites      prometheus.Counter
	cachedAssessment prometheus.Gauge
	backendRequests  *prometheus.CounterVec
	backendLatency   *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level recorders

// Custom registry to keep default Go/process collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gradeboard",
		subsystem:        "",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.resultsIngested = m.counter("results_ingested_total", "Graded results accepted for processing")
	m.resultsDuplicate = m.counter("results_duplicate_total", "Graded results rejected as duplicates")
	m.resultsStored = m.counter("results_stored_total", "Graded results written to the cache store")

	m.normalizations = m.counterVec("normalizations_total", "Scores normalized, by score kind", "kind")
	m.statusAssigned = m.counterVec("status_assigned_total", "Aggregate statuses assigned to ingested results", "status")
	m.normalizationLatency = m.histogram("normalization_latency_milliseconds", "Time spent normalizing one result")

	m.cacheFallbacks = m.counterVec("cache_fallbacks_total", "Reads served from the cache after a backend failure", "operation")
	m.cacheWrites = m.counter("cache_writes_total", "Write-through updates applied to the cache")
	m.cachedAssessment = m.gauge("cached_assessments", "Assessments currently held in the cache store")
	m.backendRequests = m.counterVec("backend_requests_total", "Requests sent to the grading backend", "operation", "outcome")
	m.backendLatency = m.histogramVec("backend_latency_milliseconds", "Grading backend request latency", "operation")

	m.queueSize = m.gauge("queue_size", "Submissions waiting in the ingestion queue")
	m.queueCapacity = m.gauge("queue_capacity", "Ingestion queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Submissions enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Submissions dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Enqueue failures by reason", "reason")

	m.workerCount = m.gauge("worker_count", "Ingestion workers running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "End-to-end time a worker spends on one submission")
	m.workerErrors = m.counter("worker_errors_total", "Submissions a worker failed to process")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
}

// RecordResultIngested counts a submission accepted by the HTTP layer.
func RecordResultIngested() { globalManager.resultsIngested.Inc() }

// RecordResultDuplicate counts a duplicate submission.
func RecordResultDuplicate() { globalManager.resultsDuplicate.Inc() }

// RecordResultStored counts a result written by a worker.
func RecordResultStored() { globalManager.resultsStored.Inc() }

// RecordNormalization counts one normalized score of the given kind.
func RecordNormalization(kind string) { globalManager.normalizations.WithLabelValues(kind).Inc() }

// RecordStatus counts an aggregate status assignment.
func RecordStatus(status string) { globalManager.statusAssigned.WithLabelValues(status).Inc() }

// RecordNormalizationLatency observes normalization time in milliseconds.
func RecordNormalizationLatency(ms float64) { globalManager.normalizationLatency.Observe(ms) }

// RecordCacheFallback counts a read served from cache after the backend failed.
func RecordCacheFallback(operation string) {
	globalManager.cacheFallbacks.WithLabelValues(operation).Inc()
}

// RecordCacheWrite counts a write-through update.
func RecordCacheWrite() { globalManager.cacheWrites.Inc() }

// UpdateCachedAssessments sets the number of cached assessments.
func UpdateCachedAssessments(n int) { globalManager.cachedAssessment.Set(float64(n)) }

// RecordBackendRequest counts a grading backend call and observes its latency.
func RecordBackendRequest(operation, outcome string, ms float64) {
	globalManager.backendRequests.WithLabelValues(operation, outcome).Inc()
	globalManager.backendLatency.WithLabelValues(operation).Observe(ms)
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(n int) { globalManager.queueSize.Set(float64(n)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }

// RecordQueueEnqueue counts an enqueue.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }

// RecordWorkerProcessingLatency observes worker time per submission.
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }

// RecordWorkerError counts a failed submission.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest records one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error against a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
