// Package metrics provides Prometheus metrics for the movierank service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ranking
	rankOperations    *prometheus.CounterVec
	rankConflicts     prometheus.Counter
	rankRetries       prometheus.Counter
	topLatency        prometheus.Histogram
	topSize           prometheus.Histogram
	hydrationFailures prometheus.Counter

	// Catalogue of records
	moviesCreated prometheus.Counter
	moviesDeleted prometheus.Counter
	usersTotal    prometheus.Gauge
	moviesTotal   prometheus.Gauge

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// External catalog
	catalogRequests *prometheus.CounterVec
	catalogBreaker  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "movierank",
		subsystem:        "api",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat metric declarations
	auto := promauto.With(m.registry)

	m.rankOperations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rank_operations_total",
		Help:      "Ranking engine operations by operation and outcome",
	}, []string{"operation", "outcome"})

	m.rankConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rank_conflicts_total",
		Help:      "Re-rank attempts rejected because another movie holds the rank",
	})

	m.rankRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rank_version_retries_total",
		Help:      "Rank transactions retried after an optimistic version mismatch",
	})

	m.topLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "top_ranked_latency_milliseconds",
		Help:      "Latency of top-N computation including hydration",
		Buckets:   m.histogramBuckets,
	})

	m.topSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "top_ranked_size",
		Help:      "Number of entries returned by top-N queries",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
	})

	m.hydrationFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hydration_failures_total",
		Help:      "Ranked entries whose movie record could not be loaded",
	})

	m.moviesCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "movies_created_total",
		Help:      "Movies created",
	})

	m.moviesDeleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "movies_deleted_total",
		Help:      "Movies deleted",
	})

	m.usersTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "users",
		Help:      "Registered users",
	})

	m.moviesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "movies",
		Help:      "Stored movie records",
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_latency_milliseconds",
		Help:      "Latency of store calls by backend and operation",
		Buckets:   m.histogramBuckets,
	}, []string{"backend", "operation"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Store failures by backend and operation",
	}, []string{"backend", "operation"})

	m.catalogRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_requests_total",
		Help:      "External catalog lookups by outcome",
	}, []string{"outcome"})

	m.catalogBreaker = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_breaker_state",
		Help:      "Catalog circuit breaker state (0 closed, 1 half-open, 2 open)",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "HTTP error responses by endpoint and error type",
	}, []string{"endpoint", "method", "error_type"})

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

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})
}

// RecordRankOperation counts a ranking engine call by outcome ("ok", "not_found", ...).
func RecordRankOperation(operation, outcome string) {
	globalManager.rankOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordRankConflict counts a rejected re-rank.
func RecordRankConflict() { globalManager.rankConflicts.Inc() }

// RecordRankRetry counts an optimistic-concurrency retry.
func RecordRankRetry() { globalManager.rankRetries.Inc() }

// RecordTopRanked records latency and size of a top-N query.
func RecordTopRanked(latencyMs float64, size int) {
	globalManager.topLatency.Observe(latencyMs)
	globalManager.topSize.Observe(float64(size))
}

// RecordHydrationFailure counts a ranked entry whose movie is missing.
func RecordHydrationFailure() { globalManager.hydrationFailures.Inc() }

// RecordMovieCreated counts a created movie.
func RecordMovieCreated() { globalManager.moviesCreated.Inc() }

// RecordMovieDeleted counts a deleted movie.
func RecordMovieDeleted() { globalManager.moviesDeleted.Inc() }

// UpdateTotals sets the user and movie gauges.
func UpdateTotals(users, movies int) {
	globalManager.usersTotal.Set(float64(users))
	globalManager.moviesTotal.Set(float64(movies))
}

// RecordStoreCall records the latency of a store call and counts failures.
func RecordStoreCall(backend, operation string, latencyMs float64, err error) {
	globalManager.storeLatency.WithLabelValues(backend, operation).Observe(latencyMs)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordCatalogRequest counts a catalog lookup by outcome.
func RecordCatalogRequest(outcome string) {
	globalManager.catalogRequests.WithLabelValues(outcome).Inc()
}

// UpdateCatalogBreakerState sets the breaker gauge.
func UpdateCatalogBreakerState(state int) { globalManager.catalogBreaker.Set(float64(state)) }

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry all package-level metrics live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
