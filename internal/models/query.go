// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import (
	"fmt"
	"time"
)

// Incident query limits.
const (
	DefaultIncidentLimit      = 500
	MaxIncidentLimit          = 5000
	DefaultNeighbourhoodLimit = 500
	MaxNeighbourhoodLimit     = 2000
)

// IncidentQuery selects incidents for the map. From/To are optional and
// half-open on report timestamp.
type IncidentQuery struct {
	IncidentFilter
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Normalize applies the default limit and validates bounds.
func (q *IncidentQuery) Normalize() error {
	if q.Limit == 0 {
		q.Limit = DefaultIncidentLimit
	}
	if q.Limit < 1 || q.Limit > MaxIncidentLimit {
		return &ValidationError{Field: "limit", Message: fmt.Sprintf("limit must be between 1 and %d", MaxIncidentLimit)}
	}
	if q.Offset < 0 {
		return &ValidationError{Field: "offset", Message: "offset must be >= 0"}
	}
	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return &ValidationError{Field: "date_to", Message: "date_from must be before date_to"}
	}
	if q.BBox != nil {
		return q.BBox.Validate()
	}
	return nil
}

// NeighbourhoodQuery selects boundary polygons. Code matches either the
// area code or the short code.
type NeighbourhoodQuery struct {
	BBox  *BBox
	Code  string
	Limit int
}

func (q *NeighbourhoodQuery) Normalize() error {
	if q.Limit == 0 {
		q.Limit = DefaultNeighbourhoodLimit
	}
	if q.Limit < 1 || q.Limit > MaxNeighbourhoodLimit {
		return &ValidationError{Field: "limit", Message: fmt.Sprintf("limit must be between 1 and %d", MaxNeighbourhoodLimit)}
	}
	if q.BBox != nil {
		return q.BBox.Validate()
	}
	return nil
}

// BucketCount is one non-empty time bucket as returned by the store.
type BucketCount struct {
	Start time.Time
	Count int64
}

// LoadResult summarises a committed load.
type LoadResult struct {
	Received int   `json:"received"`
	Deduped  int   `json:"deduped"` // rows left after in-batch dedup
	Upserted int64 `json:"upserted"`
}
