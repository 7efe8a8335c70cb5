// Package metrics provides Prometheus metrics for the pulse trending service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Engagement pipeline
	eventsProcessed   prometheus.Counter
	eventsDuplicate   prometheus.Counter
	eventsRejected    prometheus.Counter
	ledgerAppends     prometheus.Counter
	counterIncLatency prometheus.Histogram

	// Ranking and cache
	rankLatency prometheus.Histogram
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// Store and index
	clipsTotal      prometheus.Gauge
	indexSize       prometheus.Gauge
	rebuilds        prometheus.Counter
	rebuildDuration prometheus.Histogram

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Workers
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemory     prometheus.Gauge
	systemGoroutines prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry registers collectors on a specific registry.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithHistogramBuckets overrides histogram buckets (milliseconds).
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps service metrics apart from the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pulse",
		subsystem:        "trending",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.register()
	return m
}

func (m *Manager) register() {
	factory := promauto.With(m.registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
			Buckets: m.histogramBuckets,
		})
	}

	m.eventsProcessed = counter("events_processed_total", "Engagement events accepted into the pipeline.")
	m.eventsDuplicate = counter("events_duplicate_total", "Engagement events rejected as duplicates.")
	m.eventsRejected = counter("events_rejected_total", "Engagement events rejected as invalid.")
	m.ledgerAppends = counter("ledger_appends_total", "Events appended to the engagement ledger.")
	m.counterIncLatency = histogram("counter_increment_latency_ms", "Latency of atomic clip counter increments.")

	m.rankLatency = histogram("rank_latency_ms", "Latency of trending page computation.")
	m.cacheHits = counter("score_cache_hits_total", "Trending page cache hits.")
	m.cacheMisses = counter("score_cache_misses_total", "Trending page cache misses.")

	m.clipsTotal = gauge("clips_total", "Clips tracked in the clip store.")
	m.indexSize = gauge("tag_index_size", "Clips tracked in the tag index.")
	m.rebuilds = counter("counter_rebuilds_total", "Recompute-from-ledger runs.")
	m.rebuildDuration = histogram("counter_rebuild_duration_ms", "Duration of recompute-from-ledger runs.")

	m.queueSize = gauge("queue_size", "Events waiting in the intake queue.")
	m.queueCapacity = gauge("queue_capacity", "Capacity of the intake queue.")
	m.queueUtilization = gauge("queue_utilization", "Intake queue fill ratio.")
	m.queueEnqueues = counter("queue_enqueues_total", "Successful queue enqueues.")
	m.queueDequeues = counter("queue_dequeues_total", "Queue dequeues handed to workers.")
	m.queueEnqueueErrs = counter("queue_enqueue_errors_total", "Enqueues refused (closed, full or cancelled).")

	m.workerActive = gauge("worker_active", "Running engagement workers.")
	m.workerLatency = histogram("worker_processing_latency_ms", "Per-event worker processing latency.")
	m.workerErrors = counter("worker_errors_total", "Worker processing failures.")

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total", Help: "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_request_duration_ms", Help: "HTTP request latency by endpoint, method and status.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.errorsByComponent = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total", Help: "Errors by component and kind.",
	}, []string{"component", "kind"})

	m.systemMemory = gauge("system_memory_bytes", "Allocated heap bytes.")
	m.systemGoroutines = gauge("system_goroutines", "Live goroutines.")
}

// GetRegistry returns the registry backing the global manager, for exposition.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
