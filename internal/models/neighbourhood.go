// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// NeighbourhoodPolygon is an administrative boundary keyed by AreaCode.
type NeighbourhoodPolygon struct {
	AreaCode  string          `json:"area_code"`
	ShortCode string          `json:"short_code,omitempty"`
	Name      string          `json:"name,omitempty"`
	Geometry  GeoJSONGeometry `json:"geometry"`
	Bounds    BBox            `json:"bbox"`
}

// GeoJSONGeometry is a raw GeoJSON geometry object.
type GeoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Supported polygon geometry types.
const (
	GeometryPolygon      = "Polygon"
	GeometryMultiPolygon = "MultiPolygon"
	GeometryPoint        = "Point"
)

// PolygonBounds validates a Polygon or MultiPolygon and returns its envelope.
//
// Every ring must have at least four positions, be closed, and contain only
// finite WGS84 coordinates.
func PolygonBounds(g GeoJSONGeometry) (BBox, error) {
	var polygons [][][][]float64

	switch g.Type {
	case GeometryPolygon:
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return BBox{}, fmt.Errorf("decode polygon coordinates: %w", err)
		}
		polygons = [][][][]float64{rings}
	case GeometryMultiPolygon:
		if err := json.Unmarshal(g.Coordinates, &polygons); err != nil {
			return BBox{}, fmt.Errorf("decode multipolygon coordinates: %w", err)
		}
	default:
		return BBox{}, fmt.Errorf("unsupported geometry type %q", g.Type)
	}

	if len(polygons) == 0 {
		return BBox{}, fmt.Errorf("geometry has no polygons")
	}

	bounds := BBox{West: math.Inf(1), South: math.Inf(1), East: math.Inf(-1), North: math.Inf(-1)}
	for pi, rings := range polygons {
		if len(rings) == 0 {
			return BBox{}, fmt.Errorf("polygon %d has no rings", pi)
		}
		for ri, ring := range rings {
			if err := checkRing(ring); err != nil {
				return BBox{}, fmt.Errorf("polygon %d ring %d: %w", pi, ri, err)
			}
			for _, pos := range ring {
				bounds.Extend(pos[0], pos[1])
			}
		}
	}
	return bounds, nil
}

func checkRing(ring [][]float64) error {
	if len(ring) < 4 {
		return fmt.Errorf("ring has %d positions, need at least 4", len(ring))
	}
	for _, pos := range ring {
		if len(pos) < 2 {
			return fmt.Errorf("position has %d values", len(pos))
		}
		lon, lat := pos[0], pos[1]
		if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
			return fmt.Errorf("non-finite coordinate")
		}
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			return fmt.Errorf("coordinate (%g, %g) out of range", lon, lat)
		}
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		return fmt.Errorf("ring is not closed")
	}
	return nil
}

// Feature is a GeoJSON feature with free-form properties.
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *GeoJSONGeometry       `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns an empty, non-nil collection.
func NewFeatureCollection(capacity int) FeatureCollection {
	return FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, capacity)}
}

// PointGeometry encodes a GeoJSON Point.
func PointGeometry(lon, lat float64) *GeoJSONGeometry {
	coords, _ := json.Marshal([2]float64{lon, lat})
	return &GeoJSONGeometry{Type: GeometryPoint, Coordinates: coords}
}

// Feature renders the polygon as a GeoJSON feature.
func (n *NeighbourhoodPolygon) Feature() Feature {
	geom := n.Geometry
	return Feature{
		Type:     "Feature",
		Geometry: &geom,
		Properties: map[string]interface{}{
			"area_code":  n.AreaCode,
			"short_code": nullable(n.ShortCode),
			"name":       nullable(n.Name),
		},
	}
}
