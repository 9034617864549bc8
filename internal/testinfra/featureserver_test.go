// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package testinfra

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func query(t *testing.T, base string, params url.Values) (int, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Get(base + "?" + params.Encode())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]json.RawMessage
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode, body
}

func TestFeatureServerPagingAndWindow(t *testing.T) {
	t.Parallel()

	f := NewFeatureServer(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		f.AddIncidents("robbery", IncidentRow(fmt.Sprintf("GO-%d", i), base.AddDate(0, 0, i), "Robbery", "001", -79.4, 43.7))
	}

	_, body := query(t, f.LayerURL("robbery"), url.Values{"where": {"1=1"}, "resultOffset": {"0"}, "resultRecordCount": {"2"}})
	var features []json.RawMessage
	_ = json.Unmarshal(body["features"], &features)
	if len(features) != 2 || string(body["exceededTransferLimit"]) != "true" {
		t.Errorf("page = %d features, limit = %s", len(features), body["exceededTransferLimit"])
	}

	where := fmt.Sprintf("REPORT_DATE >= %d AND REPORT_DATE < %d", base.AddDate(0, 0, 1).UnixMilli(), base.AddDate(0, 0, 3).UnixMilli())
	_, body = query(t, f.LayerURL("robbery"), url.Values{"where": {where}, "resultRecordCount": {"10"}})
	_ = json.Unmarshal(body["features"], &features)
	if len(features) != 2 {
		t.Errorf("windowed query returned %d features, want 2", len(features))
	}
	if f.Requests("robbery") != 2 {
		t.Errorf("Requests() = %d, want 2", f.Requests("robbery"))
	}
}

func TestFeatureServerFailuresAndPolygons(t *testing.T) {
	t.Parallel()

	f := NewFeatureServer(t)
	f.AddNeighbourhoods(SquareNeighbourhood("001", "West", -79.6, 43.6, 0.1))
	f.FailNext(NeighbourhoodsLayer, 1)

	if code, _ := query(t, f.LayerURL(NeighbourhoodsLayer), url.Values{}); code != http.StatusServiceUnavailable {
		t.Errorf("first status = %d, want 503", code)
	}
	code, body := query(t, f.LayerURL(NeighbourhoodsLayer), url.Values{})
	if code != http.StatusOK || string(body["type"]) != `"FeatureCollection"` {
		t.Errorf("status = %d body = %v", code, body)
	}
}
