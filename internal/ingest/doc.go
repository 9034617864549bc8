// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package ingest runs the batch ETL: it selects a time window per dataset,
pulls pages through the connector registry, loads them through the
idempotent loader and records the outcome as an ingestion run.

Each dataset moves through a small state machine:

	PENDING -> FETCHING -> STAGING -> COMMITTED
	   |          |           |
	   +----------+-----------+------> FAILED

Any other transition is a programming error and is reported as an
*IllegalTransitionError.

Datasets are processed by a bounded pool of workers. A worker that panics
fails only its own dataset. The run status is derived from the terminal
dataset states:

  - every dataset COMMITTED: succeeded
  - some COMMITTED: degraded
  - none COMMITTED: failed
  - context cancelled: aborted (non-terminal datasets become FAILED)

When at least one dataset commits, aggregates are refreshed once and a
RunCompleted event is published so API processes can drop cached responses.

The Scheduler wraps the orchestrator for the server-resident mode: it aborts
runs left "running" by a crashed process, optionally runs once at startup,
then runs on a fixed interval. Only one run executes at a time per
orchestrator.
*/
package ingest
