// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import "time"

// DatasetState is the per-dataset ingestion state.
type DatasetState string

const (
	StatePending   DatasetState = "PENDING"
	StateFetching  DatasetState = "FETCHING"
	StateStaging   DatasetState = "STAGING"
	StateCommitted DatasetState = "COMMITTED"
	StateFailed    DatasetState = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s DatasetState) IsTerminal() bool {
	return s == StateCommitted || s == StateFailed
}

// RunStatus summarizes a whole ingestion run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunDegraded  RunStatus = "degraded"
	RunFailed    RunStatus = "failed"
	RunAborted   RunStatus = "aborted"
)

// IsSuccessful reports whether at least one dataset was committed and the
// run finished normally.
func (s RunStatus) IsSuccessful() bool {
	return s == RunSucceeded || s == RunDegraded
}

// RunTrigger records what started a run.
type RunTrigger string

const (
	TriggerCLI      RunTrigger = "cli"
	TriggerSchedule RunTrigger = "schedule"
	TriggerStartup  RunTrigger = "startup"
)

// DatasetKind distinguishes incident feeds from the boundary feed.
type DatasetKind string

const (
	KindIncidents      DatasetKind = "incidents"
	KindNeighbourhoods DatasetKind = "neighbourhoods"
)

// IngestionRun is the metadata row for one orchestrated ETL run.
type IngestionRun struct {
	ID          string       `json:"id"`
	Trigger     RunTrigger   `json:"trigger"`
	Status      RunStatus    `json:"status"`
	Backfill    bool         `json:"backfill"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Datasets    []DatasetRun `json:"datasets"`
}

// DatasetRun records the outcome of one dataset inside a run.
type DatasetRun struct {
	RunID        string         `json:"run_id"`
	Dataset      string         `json:"dataset"`
	Kind         DatasetKind    `json:"kind"`
	State        DatasetState   `json:"state"`
	WindowStart  *time.Time     `json:"window_start,omitempty"`
	WindowEnd    *time.Time     `json:"window_end,omitempty"`
	RowsFetched  int64          `json:"rows_fetched"`
	RowsLoaded   int64          `json:"rows_loaded"`
	RowsSkipped  int64          `json:"rows_skipped"`
	SkipReasons  map[string]int `json:"skip_reasons,omitempty"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	FetchAttempt int            `json:"fetch_attempts"`
}

// Committed reports whether the dataset reached COMMITTED.
func (d *DatasetRun) Committed() bool {
	return d.State == StateCommitted
}

// DeriveRunStatus computes the run-level status from dataset outcomes.
func DeriveRunStatus(datasets []DatasetRun, aborted bool) RunStatus {
	if aborted {
		return RunAborted
	}
	committed := 0
	for i := range datasets {
		if datasets[i].Committed() {
			committed++
		}
	}
	switch {
	case committed == len(datasets):
		return RunSucceeded
	case committed > 0:
		return RunDegraded
	default:
		return RunFailed
	}
}
