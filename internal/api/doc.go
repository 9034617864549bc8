// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package api serves the read-only HTTP interface on a chi router.

Routes live under /api/v1. Map layers (incidents, neighbourhoods) are bare
GeoJSON FeatureCollections with Content-Type application/geo+json; every
other route uses the JSON envelope

	{"status": "success"|"error", "data": ..., "metadata": {...}, "error": {...}}

Errors carry a stable code:

	VALIDATION_ERROR   400  malformed parameter (bbox, dates, interval, limit)
	NOT_FOUND          404  unknown neighbourhood code or run ID
	SUPERSEDED         409  a newer request with the same X-Query-Key replaced this one
	RATE_LIMITED       429  per-IP limit from go-chi/httprate
	REQUEST_CANCELLED  499  client went away
	DATABASE_ERROR     500  store failure
	QUERY_TIMEOUT      504  server.query_timeout exceeded

Read endpoints share one execution path (query_executor.go): a TTL response
cache keyed on the normalized request, a flight.Group keyed on the
X-Query-Key header that cancels the older in-flight query for the same key,
and a per-request query timeout. The response cache is cleared by
Handler.OnRunCompleted, which the event listener calls whenever an
ingestion run commits data.
*/
package api
