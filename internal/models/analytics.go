// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import "time"

// Interval is the timeline bucket granularity.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// ParseInterval accepts day, week or month. Empty means day.
func ParseInterval(raw string) (Interval, error) {
	switch Interval(raw) {
	case "":
		return IntervalDay, nil
	case IntervalDay, IntervalWeek, IntervalMonth:
		return Interval(raw), nil
	default:
		return "", &ValidationError{Field: "interval", Message: "interval must be one of day|week|month"}
	}
}

// OtherCategory labels incidents with no category.
const OtherCategory = "other"

// MaxTimelineBuckets caps gap-filled timelines.
const MaxTimelineBuckets = 3700

// IncidentFilter holds the attribute and spatial filters shared by incident
// queries and analytics. Empty strings mean "no restriction".
type IncidentFilter struct {
	BBox              *BBox
	Dataset           string
	Category          string
	Offence           string // case-insensitive contains match
	NeighbourhoodCode string
}

// AnalyticsFilter scopes an analytics computation to a half-open window.
type AnalyticsFilter struct {
	IncidentFilter
	From time.Time
	To   time.Time
}

// Validate checks the window and the optional bbox.
func (f AnalyticsFilter) Validate() error {
	if f.From.IsZero() || f.To.IsZero() {
		return &ValidationError{Field: "date_from", Message: "date_from and date_to are required"}
	}
	if !f.From.Before(f.To) {
		return &ValidationError{Field: "date_to", Message: "date_from must be before date_to"}
	}
	if f.BBox != nil {
		return f.BBox.Validate()
	}
	return nil
}

// Totals holds the aggregate counts of an analytics result.
type Totals struct {
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"by_category"`
	ByDataset  map[string]int64 `json:"by_dataset"`
}

// TimelinePoint is one bucket of a gap-filled timeline.
type TimelinePoint struct {
	Date  string    `json:"date"`
	Count int64     `json:"count"`
	Start time.Time `json:"-"`
}

// AnalyticsResult is returned by the analytics engine.
type AnalyticsResult struct {
	Totals   Totals          `json:"totals"`
	Timeline []TimelinePoint `json:"timeline"`
	Interval Interval        `json:"interval"`
	From     time.Time       `json:"date_from"`
	To       time.Time       `json:"date_to"`
}

// WindowComparison compares two independent analytics results.
type WindowComparison struct {
	WindowA AnalyticsResult `json:"window_a"`
	WindowB AnalyticsResult `json:"window_b"`
	Diff    int64           `json:"diff"`
	Pct     *float64        `json:"pct"`
}

// NeighbourhoodAnalytics pairs a resolved neighbourhood with its analytics.
type NeighbourhoodAnalytics struct {
	AreaCode  string          `json:"area_code"`
	ShortCode string          `json:"short_code,omitempty"`
	Name      string          `json:"name,omitempty"`
	BBox      BBox            `json:"bbox"`
	Analytics AnalyticsResult `json:"analytics"`
}

// NeighbourhoodComparison is the neighbourhood-to-neighbourhood delta.
type NeighbourhoodComparison struct {
	NeighbourhoodA NeighbourhoodAnalytics `json:"neighbourhood_a"`
	NeighbourhoodB NeighbourhoodAnalytics `json:"neighbourhood_b"`
	Diff           int64                  `json:"diff"`
	Pct            *float64               `json:"pct"`
}

// Delta returns a-b and the percentage change relative to b.
// The percentage is nil when b is zero.
func Delta(a, b int64) (int64, *float64) {
	diff := a - b
	if b == 0 {
		return diff, nil
	}
	pct := float64(diff) / float64(b) * 100
	return diff, &pct
}

// FormatBucket renders a bucket start the way timelines expose it.
func FormatBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (i Interval) String() string {
	return string(i)
}

