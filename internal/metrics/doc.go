// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package metrics defines the Prometheus instrumentation shared by the API
server and the ETL job.

All collectors are registered on the default registry through promauto and
exposed by the API at /metrics via promhttp. The ETL job is short-lived, so
its counters are only scraped when ingestion runs inside the server process
(ETL_SCHEDULE or ETL_RUN_ON_STARTUP).

# Metric Families

  - duckdb_*: query latency, error classes, spatial extension availability
  - api_*: request counts, latency, in-flight requests, rate limiting, superseded queries
  - etl_*: runs by status, per-dataset duration, fetched/loaded/skipped rows, last success
  - connector_*: upstream page requests, latency, per-request retries
  - circuit_breaker_*: breaker state, requests, transitions
  - cache_*: hits, misses, evictions per named cache
  - events_*: ingestion events published and consumed

Label values are kept low-cardinality: dataset identifiers come from
configuration, and error labels are classes, never raw messages.
*/
package metrics
