// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package models defines the canonical data structures shared by every SafetyView
component.

Key Components:

  - Incident: one public-safety event keyed by (dataset, event_unique_id)
  - NeighbourhoodPolygon: administrative boundary keyed by area code
  - IngestionRun / DatasetRun: ETL run metadata and per-dataset outcomes
  - BBox and Window: spatial and temporal filters shared by queries and ingestion
  - AnalyticsFilter / AnalyticsResult: analytics engine inputs and outputs
  - APIResponse: standard JSON envelope for the HTTP layer

Error Taxonomy:

  - ValidationError: malformed filter or query parameter
  - UpstreamFetchError: a connector failed to retrieve a page after retries
  - LoadConflictError: a loader transaction was rolled back
  - SkipReason: warning for a single malformed upstream row
  - ErrNotFound: referenced identifier does not exist

Coordinates are WGS84 degrees. All timestamps are UTC instants; the report
timestamp is authoritative for ingestion windows and analytics bucketing.
*/
package models
