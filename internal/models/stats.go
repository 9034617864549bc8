// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import "time"

// CountBy is a keyed count used by dashboard breakdowns.
type CountBy struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// DailyCount is a per-day count from the rolling 30-day aggregate.
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// Stats answers UI range hints and dashboard widgets.
type Stats struct {
	TotalIncidents      int64        `json:"total_incidents"`
	MinReportDate       *time.Time   `json:"min_report_date"`
	MaxReportDate       *time.Time   `json:"max_report_date"`
	LastSuccessfulRunAt *time.Time   `json:"last_successful_run_at"`
	ByDataset           []CountBy    `json:"by_dataset"`
	ByCategory          []CountBy    `json:"by_category"`
	TopNeighbourhoods   []CountBy    `json:"top_neighbourhoods"`
	Last30d             []DailyCount `json:"last_30d"`
}
