// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"}, // error_type: timeout, canceled, other
	)

	DBSpatialAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_spatial_available",
			Help: "1 when the DuckDB spatial extension is loaded, 0 when queries use numeric fallbacks",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	APIQueriesSuperseded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_queries_superseded_total",
			Help: "Analytics queries canceled because a newer request with the same query key arrived",
		},
		[]string{"endpoint"},
	)

	// Ingestion Metrics
	ETLRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_runs_total",
			Help: "Total number of ingestion runs by final status",
		},
		[]string{"status", "trigger"},
	)

	ETLRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "etl_run_duration_seconds",
			Help:    "Duration of complete ingestion runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	ETLDatasetDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etl_dataset_duration_seconds",
			Help:    "Duration of a single dataset's fetch and load in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"dataset", "state"},
	)

	ETLRowsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_rows_fetched_total",
			Help: "Valid rows received from upstream sources",
		},
		[]string{"dataset"},
	)

	ETLRowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_rows_loaded_total",
			Help: "Rows inserted or updated by committed loads",
		},
		[]string{"dataset"},
	)

	ETLRowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_rows_skipped_total",
			Help: "Upstream rows rejected during transformation",
		},
		[]string{"dataset", "reason"},
	)

	ETLFetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_fetch_retries_total",
			Help: "Whole-dataset fetch retries after transient upstream failures",
		},
		[]string{"dataset"},
	)

	ETLLastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "etl_last_success_timestamp_seconds",
			Help: "Unix time of the last run that committed at least one dataset",
		},
	)

	// Connector Metrics
	ConnectorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_requests_total",
			Help: "Upstream feature service page requests",
		},
		[]string{"dataset", "outcome"}, // outcome: success, transient, permanent, rejected
	)

	ConnectorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_request_duration_seconds",
			Help:    "Upstream page request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"dataset"},
	)

	ConnectorRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_request_retries_total",
			Help: "Per-request retries after transient upstream errors",
		},
		[]string{"dataset"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by cache name",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by cache name",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Entries evicted for capacity by cache name",
		},
		[]string{"cache"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Ingestion events published",
		},
		[]string{"topic", "result"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Ingestion events handled by subscribers",
		},
		[]string{"topic"},
	)
)

// RecordDBQuery records a query's duration and, on failure, its error class.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table, errorClass(err)).Inc()
	}
}

// errorClass keeps error_type cardinality bounded.
func errorClass(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}

// SetSpatialAvailable records whether spatial SQL is in use.
func SetSpatialAvailable(available bool) {
	if available {
		DBSpatialAvailable.Set(1)
		return
	}
	DBSpatialAvailable.Set(0)
}

func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

func RecordSuperseded(endpoint string) {
	APIQueriesSuperseded.WithLabelValues(endpoint).Inc()
}

// RecordRun records a finished ingestion run.
func RecordRun(status, trigger string, duration time.Duration, anyCommitted bool, completedAt time.Time) {
	ETLRunsTotal.WithLabelValues(status, trigger).Inc()
	ETLRunDuration.Observe(duration.Seconds())
	if anyCommitted {
		ETLLastSuccessTimestamp.Set(float64(completedAt.Unix()))
	}
}

// RecordDataset records one dataset's terminal state and row counts.
func RecordDataset(dataset, state string, duration time.Duration, fetched, loaded int64, skipped map[string]int) {
	ETLDatasetDuration.WithLabelValues(dataset, state).Observe(duration.Seconds())
	ETLRowsFetched.WithLabelValues(dataset).Add(float64(fetched))
	ETLRowsLoaded.WithLabelValues(dataset).Add(float64(loaded))
	for reason, n := range skipped {
		ETLRowsSkipped.WithLabelValues(dataset, reason).Add(float64(n))
	}
}

func RecordFetchRetry(dataset string) {
	ETLFetchRetries.WithLabelValues(dataset).Inc()
}

// RecordConnectorRequest records one upstream page request.
func RecordConnectorRequest(dataset, outcome string, duration time.Duration) {
	ConnectorRequests.WithLabelValues(dataset, outcome).Inc()
	if duration > 0 {
		ConnectorRequestDuration.WithLabelValues(dataset).Observe(duration.Seconds())
	}
}

func RecordConnectorRetry(dataset string) {
	ConnectorRetries.WithLabelValues(dataset).Inc()
}

// circuitStateValue maps gobreaker state names to gauge values.
func circuitStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordCircuitBreakerTransition records a breaker state change. States are
// the gobreaker String() forms: closed, half-open, open.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerState.WithLabelValues(name).Set(circuitStateValue(to))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

func RecordCacheEviction(cache string) {
	CacheEvictions.WithLabelValues(cache).Inc()
}

func RecordEventPublished(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsPublished.WithLabelValues(topic, result).Inc()
}

func RecordEventConsumed(topic string) {
	EventsConsumed.WithLabelValues(topic).Inc()
}

// StatusCode formats an HTTP status for the status_code label.
func StatusCode(code int) string {
	return strconv.Itoa(code)
}
