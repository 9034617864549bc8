// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced identifier does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError describes a malformed query parameter or filter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UpstreamFetchError is returned when a connector cannot retrieve a page.
// PagesDelivered counts the pages handed to the caller before the failure.
type UpstreamFetchError struct {
	Dataset        string
	Offset         int
	PagesDelivered int
	Transient      bool
	Err            error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("fetch %s at offset %d (after %d pages): %v", e.Dataset, e.Offset, e.PagesDelivered, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// IsTransientFetch reports whether err is an UpstreamFetchError worth retrying.
func IsTransientFetch(err error) bool {
	var fe *UpstreamFetchError
	return errors.As(err, &fe) && fe.Transient
}

// LoadConflictError is returned when a loader batch was rolled back.
type LoadConflictError struct {
	Dataset string
	Rows    int
	Err     error
}

func (e *LoadConflictError) Error() string {
	return fmt.Sprintf("load %s (%d rows) rolled back: %v", e.Dataset, e.Rows, e.Err)
}

func (e *LoadConflictError) Unwrap() error { return e.Err }

// SkipReason names why a single upstream row was dropped.
type SkipReason string

const (
	SkipMissingKey         SkipReason = "missing_key"
	SkipMissingCoordinates SkipReason = "missing_coordinates"
	SkipInvalidCoordinates SkipReason = "invalid_coordinates"
	SkipMissingTimestamp   SkipReason = "missing_report_timestamp"
	SkipInvalidTimestamp   SkipReason = "invalid_timestamp"
	SkipInvalidGeometry    SkipReason = "invalid_geometry"
)

// SkipCounts tallies skipped rows by reason.
type SkipCounts map[SkipReason]int

// Add records one skipped row.
func (s SkipCounts) Add(reason SkipReason) {
	s[reason]++
}

// Total returns the number of skipped rows.
func (s SkipCounts) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}

// Merge folds other into s.
func (s SkipCounts) Merge(other SkipCounts) {
	for k, v := range other {
		s[k] += v
	}
}

// AsMap converts to a JSON-friendly map.
func (s SkipCounts) AsMap() map[string]int {
	if len(s) == 0 {
		return nil
	}
	out := make(map[string]int, len(s))
	for k, v := range s {
		out[string(k)] = v
	}
	return out
}
