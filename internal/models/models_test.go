// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseBBox(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    BBox
		wantErr bool
	}{
		{name: "valid", input: "-79.6,43.6,-79.3,43.8", want: BBox{West: -79.6, South: 43.6, East: -79.3, North: 43.8}},
		{name: "spaces allowed", input: " -79.6, 43.6 ,-79.3,43.8 ", want: BBox{West: -79.6, South: 43.6, East: -79.3, North: 43.8}},
		{name: "degenerate point", input: "-79.4,43.7,-79.4,43.7", want: BBox{West: -79.4, South: 43.7, East: -79.4, North: 43.7}},
		{name: "too few parts", input: "1,2,3", wantErr: true},
		{name: "not a number", input: "a,2,3,4", wantErr: true},
		{name: "NaN", input: "NaN,2,3,4", wantErr: true},
		{name: "infinite", input: "-Inf,2,3,4", wantErr: true},
		{name: "west greater than east", input: "-79.3,43.6,-79.6,43.8", wantErr: true},
		{name: "south greater than north", input: "-79.6,43.8,-79.3,43.6", wantErr: true},
		{name: "longitude out of range", input: "-181,0,0,1", wantErr: true},
		{name: "latitude out of range", input: "0,-91,1,1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseBBox(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				if !IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestBBoxContainsIsBoundaryInclusive(t *testing.T) {
	t.Parallel()

	b := BBox{West: -79.6, South: 43.6, East: -79.3, North: 43.8}
	points := []struct {
		lon, lat float64
		want     bool
	}{
		{-79.4, 43.7, true},
		{-79.6, 43.6, true},
		{-79.3, 43.8, true},
		{-79.6, 43.7, true},
		{-79.61, 43.7, false},
		{-79.4, 43.81, false},
	}
	for _, p := range points {
		if got := b.Contains(p.lon, p.lat); got != p.want {
			t.Errorf("Contains(%g, %g) = %v, want %v", p.lon, p.lat, got, p.want)
		}
	}
}

func TestBBoxIntersects(t *testing.T) {
	t.Parallel()

	a := BBox{West: 0, South: 0, East: 10, North: 10}
	if !a.Intersects(BBox{West: 10, South: 10, East: 20, North: 20}) {
		t.Error("touching corners should intersect")
	}
	if a.Intersects(BBox{West: 11, South: 0, East: 20, North: 10}) {
		t.Error("disjoint boxes should not intersect")
	}
}

func TestPolygonBounds(t *testing.T) {
	t.Parallel()

	square := GeoJSONGeometry{
		Type:        GeometryPolygon,
		Coordinates: []byte(`[[[-79.6,43.6],[-79.3,43.6],[-79.3,43.8],[-79.6,43.8],[-79.6,43.6]]]`),
	}
	got, err := PolygonBounds(square)
	if err != nil {
		t.Fatalf("PolygonBounds: %v", err)
	}
	want := BBox{West: -79.6, South: 43.6, East: -79.3, North: 43.8}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	multi := GeoJSONGeometry{
		Type: GeometryMultiPolygon,
		Coordinates: []byte(`[[[[0,0],[1,0],[1,1],[0,0]]],
			[[[5,5],[6,5],[6,7],[5,5]]]]`),
	}
	got, err = PolygonBounds(multi)
	if err != nil {
		t.Fatalf("PolygonBounds multi: %v", err)
	}
	if got != (BBox{West: 0, South: 0, East: 6, North: 7}) {
		t.Errorf("multipolygon bounds = %+v", got)
	}
}

func TestPolygonBoundsRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		geom GeoJSONGeometry
	}{
		{"point", GeoJSONGeometry{Type: GeometryPoint, Coordinates: []byte(`[0,0]`)}},
		{"open ring", GeoJSONGeometry{Type: GeometryPolygon, Coordinates: []byte(`[[[0,0],[1,0],[1,1],[0,1]]]`)}},
		{"short ring", GeoJSONGeometry{Type: GeometryPolygon, Coordinates: []byte(`[[[0,0],[1,0],[0,0]]]`)}},
		{"no rings", GeoJSONGeometry{Type: GeometryPolygon, Coordinates: []byte(`[]`)}},
		{"out of range", GeoJSONGeometry{Type: GeometryPolygon, Coordinates: []byte(`[[[0,0],[190,0],[1,1],[0,0]]]`)}},
		{"garbage", GeoJSONGeometry{Type: GeometryPolygon, Coordinates: []byte(`"nope"`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := PolygonBounds(tt.geom); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDelta(t *testing.T) {
	t.Parallel()

	diff, pct := Delta(15, 10)
	if diff != 5 || pct == nil || *pct != 50 {
		t.Errorf("Delta(15,10) = %d, %v", diff, pct)
	}

	diff, pct = Delta(3, 0)
	if diff != 3 || pct != nil {
		t.Errorf("Delta(3,0) = %d, %v; want 3, nil", diff, pct)
	}

	a, _ := Delta(7, 12)
	b, _ := Delta(12, 7)
	if a != -b {
		t.Errorf("diff should be antisymmetric: %d vs %d", a, b)
	}
}

func TestDeriveRunStatus(t *testing.T) {
	t.Parallel()

	committed := DatasetRun{State: StateCommitted}
	failed := DatasetRun{State: StateFailed}

	tests := []struct {
		name     string
		datasets []DatasetRun
		aborted  bool
		want     RunStatus
	}{
		{"all committed", []DatasetRun{committed, committed}, false, RunSucceeded},
		{"mixed", []DatasetRun{committed, failed}, false, RunDegraded},
		{"all failed", []DatasetRun{failed, failed}, false, RunFailed},
		{"aborted wins", []DatasetRun{committed}, true, RunAborted},
		{"empty run", nil, false, RunSucceeded},
	}
	for _, tt := range tests {
		if got := DeriveRunStatus(tt.datasets, tt.aborted); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestNewWindow(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	w, err := NewWindow(from, to)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if !w.Contains(from) || w.Contains(to) {
		t.Error("window must be half-open")
	}
	if _, err := NewWindow(to, from); !IsValidationError(err) {
		t.Errorf("inverted window should be a validation error, got %v", err)
	}
}

func TestParseInterval(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "day", "week", "month"} {
		if _, err := ParseInterval(in); err != nil {
			t.Errorf("ParseInterval(%q): %v", in, err)
		}
	}
	if _, err := ParseInterval("year"); !IsValidationError(err) {
		t.Errorf("expected validation error for year, got %v", err)
	}
}

func TestErrorWrapping(t *testing.T) {
	t.Parallel()

	base := errors.New("connection reset")
	fe := &UpstreamFetchError{Dataset: "robbery", Offset: 2000, PagesDelivered: 1, Transient: true, Err: base}
	wrapped := fmt.Errorf("attempt 1: %w", fe)
	if !errors.Is(wrapped, base) {
		t.Error("UpstreamFetchError should unwrap to its cause")
	}
	if !IsTransientFetch(wrapped) {
		t.Error("expected transient fetch error")
	}

	le := &LoadConflictError{Dataset: "robbery", Rows: 3, Err: base}
	if !errors.Is(le, base) {
		t.Error("LoadConflictError should unwrap to its cause")
	}
}

func TestSkipCounts(t *testing.T) {
	t.Parallel()

	s := SkipCounts{}
	s.Add(SkipMissingKey)
	s.Add(SkipMissingKey)
	other := SkipCounts{SkipInvalidTimestamp: 3}
	s.Merge(other)

	if s.Total() != 5 {
		t.Errorf("Total = %d, want 5", s.Total())
	}
	m := s.AsMap()
	if m["missing_key"] != 2 || m["invalid_timestamp"] != 3 {
		t.Errorf("AsMap = %v", m)
	}
	if (SkipCounts{}).AsMap() != nil {
		t.Error("empty counts should map to nil")
	}
}

func TestIncidentFeature(t *testing.T) {
	t.Parallel()

	hood := "077"
	occ := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
	inc := Incident{
		ID:                  7,
		Dataset:             "robbery",
		EventUniqueID:       "GO-1",
		ReportTimestamp:     time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC),
		OccurrenceTimestamp: &occ,
		Category:            "Robbery",
		NeighbourhoodCode:   &hood,
		Longitude:           -79.38,
		Latitude:            43.65,
	}

	f := inc.Feature()
	if f.Geometry == nil || f.Geometry.Type != GeometryPoint {
		t.Fatalf("geometry = %+v", f.Geometry)
	}
	if string(f.Geometry.Coordinates) != "[-79.38,43.65]" {
		t.Errorf("coordinates = %s", f.Geometry.Coordinates)
	}
	if f.Properties["report_timestamp"] != "2024-03-02T01:00:00Z" {
		t.Errorf("report_timestamp = %v", f.Properties["report_timestamp"])
	}
	if f.Properties["neighbourhood_code"] != "077" {
		t.Errorf("neighbourhood_code = %v", f.Properties["neighbourhood_code"])
	}
	if f.Properties["offence"] != nil {
		t.Errorf("empty offence should be null, got %v", f.Properties["offence"])
	}
}
