// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

// Package database is the DuckDB-backed store for incidents, neighbourhood
// boundaries, precomputed aggregates and ingestion run metadata.
//
// # Overview
//
// The package owns every write to the store (the idempotent loader) and
// serves the read paths used by the map API and the analytics engine.
// DuckDB is reached through database/sql with the duckdb-go/v2 driver.
//
// # Architecture
//
// Core:
//   - database.go: lifecycle (open, initialize, close)
//   - database_extensions.go: spatial, icu and json extension loading
//   - database_connection.go: pool settings and error classification
//   - migrations.go: versioned schema with deferred spatial migrations
//
// Loader:
//   - loader.go: whole-batch retry on transaction conflicts
//   - loader_incidents.go: stage, dedup and upsert on (dataset, event_unique_id)
//   - loader_neighbourhoods.go: the same pattern keyed on area_code
//   - loader_aggregates.go: daily, neighbourhood and 30-day rollups
//
// Queries:
//   - query_builder.go: WHERE clause construction
//   - query_incidents.go, query_neighbourhoods.go: map queries
//   - query_analytics.go: totals and time buckets
//   - query_stats.go: dashboard statistics
//   - runs.go: ingestion run persistence
//
// # Spatial Fallback
//
// When the spatial extension cannot be loaded and DUCKDB_SPATIAL_OPTIONAL is
// true, geometry columns are not created and spatial predicates degrade to
// lon/lat and envelope range checks. Point-in-envelope results are identical;
// polygon queries match on bounding envelopes only.
//
// # Spatial Index
//
// The geometry columns carry no RTREE index. DuckDB rejects ON CONFLICT DO
// UPDATE on tables whose updated columns are indexed, and the loader rewrites
// geometry on every upsert. Every ST_Intersects predicate is paired with
// lon/lat (or bbox_*) BETWEEN ranges, which DuckDB prunes with row-group
// zone maps.
//
// # Loads
//
// Each load is a single transaction:
//
//	CREATE TEMP TABLE stage -> INSERT rows with ordinal
//	-> dedup (latest report_ts, then last sent)
//	-> INSERT ... ON CONFLICT DO UPDATE WHERE excluded.report_ts >= stored
//
// A failure rolls back the whole batch and surfaces as
// *models.LoadConflictError.
//
// # Concurrency
//
// DuckDB allows one writing process per file. Reads are safe to run
// concurrently; the ingestion orchestrator serializes loads per dataset.
package database
