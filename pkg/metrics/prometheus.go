// Package metrics provides Prometheus metrics for the certify service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the certify service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Roster
	rosterEntries prometheus.Gauge

	// Certificate rendering
	certificatesRendered prometheus.Counter
	certificateFailures  prometheus.Counter
	renderLatency        prometheus.Histogram
	renderFallbacks      *prometheus.CounterVec

	// Delivery
	deliveries      *prometheus.CounterVec
	deliveryLatency prometheus.Histogram

	// Queue / workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge

	// Feedback store
	storeRequests       *prometheus.CounterVec
	feedbackSubmissions prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var (
	globalMu      sync.RWMutex
	globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager
)

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// DefaultBuckets are latency buckets in milliseconds, 1ms to ~8s.
var DefaultBuckets = prometheus.ExponentialBuckets(1, 2, 14) //nolint:gochecknoglobals // shared default

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "certify",
		subsystem:        "service",
		histogramBuckets: DefaultBuckets,
		enabled:          true,
		customLabels:     map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// SetDefault replaces the manager used by the package-level helpers.
func SetDefault(m *Manager) error {
	if m == nil {
		return ErrNotInitialized
	}
	globalMu.Lock()
	globalManager = m
	globalMu.Unlock()
	return nil
}

// Configure builds a manager from opts on a fresh registry and installs
// both as the package defaults. It replaces whatever init registered, so
// call it once at startup before metrics are exposed.
func Configure(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(registry))...)

	globalMu.Lock()
	globalManager = m
	customRegistry = registry
	globalMu.Unlock()
	return m
}

func current() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalManager == nil || !globalManager.enabled {
		return nil
	}
	return globalManager
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.rosterEntries = m.gauge("roster_entries", "Number of normalized emails in the roster index")

	m.certificatesRendered = m.counter("certificates_rendered_total", "Certificates rendered successfully")
	m.certificateFailures = m.counter("certificate_failures_total", "Certificate renders that failed")
	m.renderLatency = m.histogram("certificate_render_latency_milliseconds", "Certificate render latency in milliseconds")
	m.renderFallbacks = m.counterVec("certificate_asset_fallbacks_total", "Renders that fell back because an asset was missing or unreadable", "asset")

	m.deliveries = m.counterVec("deliveries_total", "Certificate email deliveries by outcome", "outcome")
	m.deliveryLatency = m.histogram("delivery_latency_milliseconds", "Mail relay round trip in milliseconds")

	m.queueSize = m.gauge("queue_size", "Current size of the delivery queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum delivery queue capacity")
	m.workerCount = m.gauge("worker_count", "Number of delivery workers")

	m.storeRequests = m.counterVec("feedback_store_requests_total", "Requests to the feedback store by operation and outcome", "operation", "outcome")
	m.feedbackSubmissions = m.counter("feedback_submissions_total", "Feedback submissions accepted by the store")

	auto := promauto.With(m.registry)
	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.customLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// UpdateRosterEntries sets the roster size gauge.
func UpdateRosterEntries(count int) {
	if m := current(); m != nil {
		m.rosterEntries.Set(float64(count))
	}
}

// RecordCertificateRendered records a successful render and its latency.
func RecordCertificateRendered(latencyMs float64) {
	if m := current(); m != nil {
		m.certificatesRendered.Inc()
		m.renderLatency.Observe(latencyMs)
	}
}

// RecordCertificateFailure increments the failed render counter.
func RecordCertificateFailure() {
	if m := current(); m != nil {
		m.certificateFailures.Inc()
	}
}

// RecordAssetFallback records a template or font fallback.
func RecordAssetFallback(asset string) {
	if m := current(); m != nil {
		m.renderFallbacks.WithLabelValues(asset).Inc()
	}
}

// RecordDelivery records a delivery outcome: sent, skipped, failed or dropped.
func RecordDelivery(outcome string) {
	if m := current(); m != nil {
		m.deliveries.WithLabelValues(outcome).Inc()
	}
}

// RecordDeliveryLatency records the mail relay round trip.
func RecordDeliveryLatency(latencyMs float64) {
	if m := current(); m != nil {
		m.deliveryLatency.Observe(latencyMs)
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if m := current(); m != nil {
		m.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if m := current(); m != nil {
		m.queueCapacity.Set(float64(capacity))
	}
}

// UpdateWorkerCount sets the number of delivery workers.
func UpdateWorkerCount(count int) {
	if m := current(); m != nil {
		m.workerCount.Set(float64(count))
	}
}

// RecordStoreRequest records a feedback store call.
func RecordStoreRequest(operation, outcome string) {
	if m := current(); m != nil {
		m.storeRequests.WithLabelValues(operation, outcome).Inc()
	}
}

// RecordFeedbackSubmission increments the accepted submissions counter.
func RecordFeedbackSubmission() {
	if m := current(); m != nil {
		m.feedbackSubmissions.Inc()
	}
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if m := current(); m != nil {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if m := current(); m != nil {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByEndpoint records an HTTP error for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if m := current(); m != nil {
		m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	if m := current(); m != nil {
		m.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	if m := current(); m != nil {
		m.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount updates the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if m := current(); m != nil {
		m.systemGoroutineCount.Set(float64(count))
	}
}

// GetRegistry returns the custom registry used by the default manager.
func GetRegistry() *prometheus.Registry {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return customRegistry
}
