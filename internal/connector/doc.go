// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package connector pulls incident points and neighbourhood polygons from
ArcGIS-style feature services and converts them to canonical records.

# Connectors

Two contracts are exposed:

  - Connector pages through an incident layer for a time window
  - BoundaryConnector pages through a polygon layer as GeoJSON

Both deliver one transformed page at a time to a caller-supplied function.
When page N+1 fails, the N pages already delivered stay delivered and the
call returns a *models.UpstreamFetchError describing where it stopped.

# Resilience

Every upstream request goes through, in order:

 1. a golang.org/x/time/rate limiter (per connector)
 2. a sony/gobreaker circuit breaker (per connector)
 3. a bounded per-request timeout

Transient failures (HTTP 429, 5xx, network errors, ArcGIS error objects
with 5xx codes) are retried with backoff * 2^(attempt-1). Other 4xx
responses fail immediately.

# Strategy Table

Registry resolves dataset identifiers to a Strategy once at startup. The
ingestion orchestrator never dispatches on dataset names itself.

# Row Validation

Rows failing validation are skipped, counted by models.SkipReason, and
logged at warn level. See TransformIncident and TransformBoundary.
*/
package connector
