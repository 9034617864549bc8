// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BBox is an axis-aligned WGS84 envelope (west, south, east, north).
// Envelopes crossing the antimeridian are not supported.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// ParseBBox parses "west,south,east,north" and validates the result.
func ParseBBox(raw string) (*BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, &ValidationError{Field: "bbox", Message: "expected 'west,south,east,north'"}
	}

	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, &ValidationError{Field: "bbox", Message: fmt.Sprintf("invalid coordinate %q", p)}
		}
		vals[i] = v
	}

	b := &BBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate rejects non-finite, out-of-range or inverted envelopes.
func (b BBox) Validate() error {
	for _, v := range []float64{b.West, b.South, b.East, b.North} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "bbox", Message: "coordinates must be finite"}
		}
	}
	if b.West < -180 || b.East > 180 {
		return &ValidationError{Field: "bbox", Message: "longitude must be within [-180, 180]"}
	}
	if b.South < -90 || b.North > 90 {
		return &ValidationError{Field: "bbox", Message: "latitude must be within [-90, 90]"}
	}
	if b.West > b.East {
		return &ValidationError{Field: "bbox", Message: "west must not exceed east"}
	}
	if b.South > b.North {
		return &ValidationError{Field: "bbox", Message: "south must not exceed north"}
	}
	return nil
}

// Contains reports whether the point lies inside or on the envelope.
func (b BBox) Contains(lon, lat float64) bool {
	return lon >= b.West && lon <= b.East && lat >= b.South && lat <= b.North
}

// Intersects reports whether two envelopes share at least one point.
func (b BBox) Intersects(o BBox) bool {
	return b.West <= o.East && o.West <= b.East && b.South <= o.North && o.South <= b.North
}

// Extend grows the envelope to include the point.
func (b *BBox) Extend(lon, lat float64) {
	b.West = math.Min(b.West, lon)
	b.East = math.Max(b.East, lon)
	b.South = math.Min(b.South, lat)
	b.North = math.Max(b.North, lat)
}

func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.West, b.South, b.East, b.North)
}
