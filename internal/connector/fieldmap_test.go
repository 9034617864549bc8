// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package connector

import (
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/models"
)

func defaultMapping() FieldMapping {
	return FieldMappingFromConfig(config.Defaults().Sources.Fields)
}

func attrs(t *testing.T, raw string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("bad fixture %s: %v", raw, err)
	}
	return m
}

func TestTransformIncident(t *testing.T) {
	t.Parallel()

	report := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		raw    string
		reason models.SkipReason
		check  func(t *testing.T, inc models.Incident)
	}{
		{
			name: "valid epoch milliseconds",
			raw: `{"EVENT_UNIQUE_ID":"GO-1","REPORT_DATE":1709294400000,"OCC_DATE":1709290800000,
				"OFFENCE":"Robbery - Mugging","MCI_CATEGORY":"Robbery","HOOD_158":"077",
				"LONG_WGS84":-79.3832101,"LAT_WGS84":43.6532}`,
			check: func(t *testing.T, inc models.Incident) {
				if inc.Dataset != "mci" || inc.EventUniqueID != "GO-1" {
					t.Errorf("identity = %s/%s", inc.Dataset, inc.EventUniqueID)
				}
				if !inc.ReportTimestamp.Equal(report) {
					t.Errorf("report = %v, want %v", inc.ReportTimestamp, report)
				}
				if inc.OccurrenceTimestamp == nil || !inc.OccurrenceTimestamp.Equal(report.Add(-time.Hour)) {
					t.Errorf("occurrence = %v", inc.OccurrenceTimestamp)
				}
				if inc.Longitude != -79.38321 {
					t.Errorf("longitude = %v, want 6 decimal rounding", inc.Longitude)
				}
				if inc.NeighbourhoodCode == nil || *inc.NeighbourhoodCode != "077" {
					t.Errorf("neighbourhood = %v", inc.NeighbourhoodCode)
				}
			},
		},
		{
			name: "RFC3339 and numeric strings",
			raw: `{"EVENT_UNIQUE_ID":"GO-2","REPORT_DATE":"2024-03-01T12:00:00Z","OCC_DATE":"1709294400000",
				"LONG_WGS84":"-79.4","LAT_WGS84":"43.7"}`,
			check: func(t *testing.T, inc models.Incident) {
				if !inc.ReportTimestamp.Equal(report) || !inc.OccurrenceTimestamp.Equal(report) {
					t.Errorf("timestamps = %v / %v", inc.ReportTimestamp, inc.OccurrenceTimestamp)
				}
				if inc.Latitude != 43.7 || inc.NeighbourhoodCode != nil {
					t.Errorf("incident = %+v", inc)
				}
			},
		},
		{
			name: "case-insensitive keys and numeric id",
			raw:  `{"event_unique_id":12345,"report_date":1709294400000,"long_wgs84":-79.4,"lat_wgs84":43.7}`,
			check: func(t *testing.T, inc models.Incident) {
				if inc.EventUniqueID != "12345" {
					t.Errorf("id = %q", inc.EventUniqueID)
				}
			},
		},
		{name: "missing key", raw: `{"REPORT_DATE":1709294400000,"LONG_WGS84":-79.4,"LAT_WGS84":43.7}`, reason: models.SkipMissingKey},
		{name: "blank key", raw: `{"EVENT_UNIQUE_ID":"  ","REPORT_DATE":1709294400000,"LONG_WGS84":-79.4,"LAT_WGS84":43.7}`, reason: models.SkipMissingKey},
		{name: "missing report date", raw: `{"EVENT_UNIQUE_ID":"a","REPORT_DATE":null,"LONG_WGS84":-79.4,"LAT_WGS84":43.7}`, reason: models.SkipMissingTimestamp},
		{name: "unparsable report date", raw: `{"EVENT_UNIQUE_ID":"a","REPORT_DATE":"yesterday","LONG_WGS84":-79.4,"LAT_WGS84":43.7}`, reason: models.SkipInvalidTimestamp},
		{name: "negative epoch", raw: `{"EVENT_UNIQUE_ID":"a","REPORT_DATE":-5,"LONG_WGS84":-79.4,"LAT_WGS84":43.7}`, reason: models.SkipInvalidTimestamp},
		{name: "unparsable occurrence date", raw: `{"EVENT_UNIQUE_ID":"a","REPORT_DATE":1709294400000,"OCC_DATE":"soon","LONG_WGS84":-79.4,"LAT_WGS84":43.7}`, reason: models.SkipInvalidTimestamp},
		{name: "missing latitude", raw: `{"EVENT_UNIQUE_ID":"a","REPORT_DATE":1709294400000,"LONG_WGS84":-79.4}`, reason: models.SkipMissingCoordinates},
		{name: "null island", raw: `{"EVENT_UNIQUE_ID":"a","REPORT_DATE":1709294400000,"LONG_WGS84":0,"LAT_WGS84":0}`, reason: models.SkipInvalidCoordinates},
		{name: "latitude out of range", raw: `{"EVENT_UNIQUE_ID":"a","REPORT_DATE":1709294400000,"LONG_WGS84":-79.4,"LAT_WGS84":91}`, reason: models.SkipInvalidCoordinates},
		{name: "non-numeric longitude", raw: `{"EVENT_UNIQUE_ID":"a","REPORT_DATE":1709294400000,"LONG_WGS84":"west","LAT_WGS84":43.7}`, reason: models.SkipInvalidCoordinates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inc, reason := TransformIncident("mci", defaultMapping(), attrs(t, tt.raw))
			if reason != tt.reason {
				t.Fatalf("reason = %q, want %q", reason, tt.reason)
			}
			if tt.check != nil {
				tt.check(t, inc)
			}
		})
	}
}

func TestFieldMappingOutFields(t *testing.T) {
	t.Parallel()

	got := defaultMapping().OutFields()
	want := "EVENT_UNIQUE_ID,REPORT_DATE,OCC_DATE,OFFENCE,MCI_CATEGORY,HOOD_158,LONG_WGS84,LAT_WGS84"
	if got != want {
		t.Errorf("OutFields() = %q, want %q", got, want)
	}

	partial := FieldMapping{EventID: "ID", ReportDate: "RD", Longitude: "X", Latitude: "Y"}
	if got := partial.OutFields(); got != "ID,RD,X,Y" {
		t.Errorf("OutFields() = %q", got)
	}
}

func TestTransformBoundary(t *testing.T) {
	t.Parallel()

	fields := BoundaryFieldsFromConfig(config.Defaults().Sources.Neighbourhoods)
	square := &models.GeoJSONGeometry{
		Type:        models.GeometryPolygon,
		Coordinates: json.RawMessage(`[[[-79.4,43.6],[-79.3,43.6],[-79.3,43.7],[-79.4,43.7],[-79.4,43.6]]]`),
	}
	open := &models.GeoJSONGeometry{
		Type:        models.GeometryPolygon,
		Coordinates: json.RawMessage(`[[[-79.4,43.6],[-79.3,43.6],[-79.3,43.7],[-79.4,43.7]]]`),
	}
	point := &models.GeoJSONGeometry{Type: models.GeometryPoint, Coordinates: json.RawMessage(`[-79.4,43.6]`)}

	tests := []struct {
		name   string
		props  string
		geom   *models.GeoJSONGeometry
		reason models.SkipReason
	}{
		{"valid lower-case keys", `{"area_long_code":"077","Area_Short_Code":77,"AREA_NAME":"Waterfront"}`, square, ""},
		{"missing area code", `{"AREA_NAME":"Waterfront"}`, square, models.SkipMissingKey},
		{"no geometry", `{"AREA_LONG_CODE":"077"}`, nil, models.SkipInvalidGeometry},
		{"unclosed ring", `{"AREA_LONG_CODE":"077"}`, open, models.SkipInvalidGeometry},
		{"point geometry", `{"AREA_LONG_CODE":"077"}`, point, models.SkipInvalidGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			poly, reason := TransformBoundary(fields, attrs(t, tt.props), tt.geom)
			if reason != tt.reason {
				t.Fatalf("reason = %q, want %q", reason, tt.reason)
			}
			if reason != "" {
				return
			}
			if poly.AreaCode != "077" || poly.ShortCode != "77" || poly.Name != "Waterfront" {
				t.Errorf("polygon = %+v", poly)
			}
			want := models.BBox{West: -79.4, South: 43.6, East: -79.3, North: 43.7}
			if poly.Bounds != want {
				t.Errorf("bounds = %+v, want %+v", poly.Bounds, want)
			}
		})
	}
}
