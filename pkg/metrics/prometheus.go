// Package metrics provides Prometheus metrics for the killfeed pipeline.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers.
const (
	PhaseBackfill = "backfill"
	PhaseStream   = "stream"
	PhaseRescan   = "rescan"

	PathLive = "live"
	PathBulk = "bulk"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline metrics
	linesRead       *prometheus.CounterVec
	patternMatches  *prometheus.CounterVec
	eventsExtracted *prometheus.CounterVec
	eventsConfirmed *prometheus.CounterVec

	// Dispatch metrics
	dispatchOutcomes    *prometheus.CounterVec
	dispatchLatency     prometheus.Histogram
	dispatchRetries     prometheus.Counter
	consecutiveFailures prometheus.Gauge

	// Tailer metrics
	tailerRotations prometheus.Counter
	tailerErrors    *prometheus.CounterVec

	// Store metrics
	storeRecords     prometheus.Gauge
	storeWriteErrors prometheus.Counter

	// Reconciliation metrics
	rescanItems    prometheus.Gauge
	rescanDuration prometheus.Histogram

	// Hooks and live display
	hookFailures *prometheus.CounterVec
	feedClients  prometheus.Gauge

	// HTTP metrics for the status server
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec

	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

type global struct {
	manager  *Manager
	registry *prometheus.Registry
}

// Global metrics manager and its custom registry (no default Go metrics).
var current atomic.Pointer[global] //nolint:gochecknoglobals // intentional global for singleton metrics manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Configure()
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. Call it at startup, before serving /metrics.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(registry))...)
	current.Store(&global{manager: m, registry: registry})
}

func globalManager() *Manager { return current.Load().manager }

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "killfeed",
		subsystem:        "pipeline",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.linesRead = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "lines_read_total",
		Help:      "Log lines read, by phase (backfill, stream, rescan)",
	}, []string{"phase"})

	m.patternMatches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pattern_matches_total",
		Help:      "Lines recognised by the pattern library, by signature",
	}, []string{"kind"})

	m.eventsExtracted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_extracted_total",
		Help:      "Kill/death events extracted for the registered player",
	}, []string{"kind"})

	m.eventsConfirmed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_confirmed_total",
		Help:      "Kill/death events confirmed by the remote API (counted once per key)",
	}, []string{"kind"})

	m.dispatchOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_outcomes_total",
		Help:      "Dispatch results by event kind, outcome and path (live, bulk)",
	}, []string{"kind", "outcome", "path"})

	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_latency_milliseconds",
		Help:      "Remote API round trip latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.dispatchRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_retries_total",
		Help:      "Retried submissions on the bulk path",
	})

	m.consecutiveFailures = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "api_consecutive_failures",
		Help:      "Consecutive transient failures on the live dispatch path",
	})

	m.tailerRotations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tailer_rotations_total",
		Help:      "Times the tailed file was replaced or truncated",
	})

	m.tailerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tailer_errors_total",
		Help:      "Tailer I/O failures by reason",
	}, []string{"reason"})

	m.storeRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_records",
		Help:      "Records currently held in the local store",
	})

	m.storeWriteErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_write_errors_total",
		Help:      "Failed write-through persists of the local store",
	})

	m.rescanItems = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rescan_items",
		Help:      "Reconciliation items found by the most recent rescan",
	})

	m.rescanDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rescan_duration_milliseconds",
		Help:      "Full-file rescan duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.hookFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hook_failures_total",
		Help:      "Outbound hook failures by hook name",
	}, []string{"hook"})

	m.feedClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_clients",
		Help:      "Connected live feed websocket clients",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Status server requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Status server request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// RecordLineRead increments the lines read counter for a phase.
func RecordLineRead(phase string) {
	globalManager().linesRead.WithLabelValues(phase).Inc()
}

// RecordPatternMatch increments the pattern match counter for a signature.
func RecordPatternMatch(kind string) {
	globalManager().patternMatches.WithLabelValues(kind).Inc()
}

// RecordEventExtracted increments the extracted events counter.
func RecordEventExtracted(kind string) {
	globalManager().eventsExtracted.WithLabelValues(kind).Inc()
}

// RecordEventConfirmed increments the confirmed events counter.
func RecordEventConfirmed(kind string) {
	globalManager().eventsConfirmed.WithLabelValues(kind).Inc()
}

// RecordDispatchOutcome counts one classified dispatch result.
func RecordDispatchOutcome(kind, outcome, path string) {
	globalManager().dispatchOutcomes.WithLabelValues(kind, outcome, path).Inc()
}

// RecordDispatchLatency records API latency in milliseconds.
func RecordDispatchLatency(latencyMs float64) {
	globalManager().dispatchLatency.Observe(latencyMs)
}

// RecordDispatchRetry increments the bulk retry counter.
func RecordDispatchRetry() {
	globalManager().dispatchRetries.Inc()
}

// UpdateConsecutiveFailures sets the live-path failure streak.
func UpdateConsecutiveFailures(n int) {
	globalManager().consecutiveFailures.Set(float64(n))
}

// RecordTailerRotation increments the rotation counter.
func RecordTailerRotation() {
	globalManager().tailerRotations.Inc()
}

// RecordTailerError counts a tailer I/O failure.
func RecordTailerError(reason string) {
	globalManager().tailerErrors.WithLabelValues(reason).Inc()
}

// UpdateStoreRecords sets the number of records in the local store.
func UpdateStoreRecords(n int) {
	globalManager().storeRecords.Set(float64(n))
}

// RecordStoreWriteError increments the store write error counter.
func RecordStoreWriteError() {
	globalManager().storeWriteErrors.Inc()
}

// UpdateRescanItems sets the size of the latest reconciliation set.
func UpdateRescanItems(n int) {
	globalManager().rescanItems.Set(float64(n))
}

// RecordRescanDuration records a rescan duration in milliseconds.
func RecordRescanDuration(ms float64) {
	globalManager().rescanDuration.Observe(ms)
}

// RecordHookFailure counts a failed outbound hook.
func RecordHookFailure(hook string) {
	globalManager().hookFailures.WithLabelValues(hook).Inc()
}

// UpdateFeedClients sets the number of connected feed clients.
func UpdateFeedClients(n int) {
	globalManager().feedClients.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager().systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}
