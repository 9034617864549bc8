// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package testinfra

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// NeighbourhoodsLayer is the layer name served as GeoJSON polygons.
const NeighbourhoodsLayer = "neighbourhoods"

// FeatureServer fakes an ArcGIS feature service. Every layer answers
// /<layer>/query with resultOffset/resultRecordCount paging; incident
// layers honour a "REPORT_DATE >= a AND REPORT_DATE < b" where clause.
type FeatureServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	layers   map[string][]map[string]interface{}
	polygons []map[string]interface{}
	requests map[string]int
	failures map[string]int // layer -> remaining 503 responses
}

// NewFeatureServer starts a server that is closed with the test.
func NewFeatureServer(t *testing.T) *FeatureServer {
	t.Helper()
	f := &FeatureServer{
		layers:   make(map[string][]map[string]interface{}),
		requests: make(map[string]int),
		failures: make(map[string]int),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

// LayerURL returns the query URL of layer.
func (f *FeatureServer) LayerURL(layer string) string {
	return f.srv.URL + "/" + layer + "/query"
}

// AddIncidents appends attribute rows to layer.
func (f *FeatureServer) AddIncidents(layer string, rows ...map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.layers[layer] = append(f.layers[layer], rows...)
}

// AddNeighbourhoods appends GeoJSON features to the neighbourhoods layer.
func (f *FeatureServer) AddNeighbourhoods(features ...map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polygons = append(f.polygons, features...)
}

// FailNext makes the next n requests to layer answer 503.
func (f *FeatureServer) FailNext(layer string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[layer] = n
}

// Requests returns how many queries layer has served.
func (f *FeatureServer) Requests(layer string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[layer]
}

func (f *FeatureServer) serve(w http.ResponseWriter, r *http.Request) {
	layer, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/query")
	if !ok {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("resultOffset"))
	count, _ := strconv.Atoi(q.Get("resultRecordCount"))
	if count <= 0 {
		count = 1000
	}

	f.mu.Lock()
	f.requests[layer]++
	if f.failures[layer] > 0 {
		f.failures[layer]--
		f.mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	var body interface{}
	if layer == NeighbourhoodsLayer {
		page := pageOf(f.polygons, offset, count)
		body = map[string]interface{}{
			"type":                  "FeatureCollection",
			"features":              page,
			"exceededTransferLimit": offset+len(page) < len(f.polygons),
		}
	} else {
		rows := filterWindow(f.layers[layer], q.Get("where"))
		page := pageOf(rows, offset, count)
		features := make([]map[string]interface{}, len(page))
		for i, attrs := range page {
			features[i] = map[string]interface{}{"attributes": attrs}
		}
		body = map[string]interface{}{
			"features":              features,
			"exceededTransferLimit": offset+len(page) < len(rows),
		}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func pageOf(rows []map[string]interface{}, offset, count int) []map[string]interface{} {
	if offset >= len(rows) {
		return []map[string]interface{}{}
	}
	end := offset + count
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

// filterWindow applies the connector's REPORT_DATE window clause.
func filterWindow(rows []map[string]interface{}, where string) []map[string]interface{} {
	var from, to int64
	if _, err := fmt.Sscanf(where, "REPORT_DATE >= %d AND REPORT_DATE < %d", &from, &to); err != nil {
		return rows
	}
	var out []map[string]interface{}
	for _, r := range rows {
		ms, ok := r["REPORT_DATE"].(int64)
		if ok && ms >= from && ms < to {
			out = append(out, r)
		}
	}
	return out
}

// IncidentRow builds attributes in the default Toronto MCI field layout.
func IncidentRow(id string, report time.Time, category, hood string, lon, lat float64) map[string]interface{} {
	return map[string]interface{}{
		"EVENT_UNIQUE_ID": id,
		"REPORT_DATE":     report.UnixMilli(),
		"OCC_DATE":        report.Add(-time.Hour).UnixMilli(),
		"OFFENCE":         category + " - Test",
		"MCI_CATEGORY":    category,
		"HOOD_158":        hood,
		"LONG_WGS84":      lon,
		"LAT_WGS84":       lat,
	}
}

// SquareNeighbourhood builds a GeoJSON polygon feature covering
// [west, west+size] x [south, south+size].
func SquareNeighbourhood(code, name string, west, south, size float64) map[string]interface{} {
	east, north := west+size, south+size
	return map[string]interface{}{
		"type": "Feature",
		"properties": map[string]interface{}{
			"AREA_LONG_CODE":  code,
			"AREA_SHORT_CODE": strings.TrimLeft(code, "0"),
			"AREA_NAME":       name,
		},
		"geometry": map[string]interface{}{
			"type": "Polygon",
			"coordinates": [][][]float64{{
				{west, south}, {east, south}, {east, north}, {west, north}, {west, south},
			}},
		},
	}
}
