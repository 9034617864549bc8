// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import (
	"fmt"
	"time"
)

// Incident is one observed public-safety event.
//
// The pair (Dataset, EventUniqueID) is the natural key. Geometry is never
// carried on the struct: the store derives it from Longitude/Latitude on
// every write.
type Incident struct {
	ID                  int64      `json:"id"`
	Dataset             string     `json:"dataset"`
	EventUniqueID       string     `json:"event_unique_id"`
	ReportTimestamp     time.Time  `json:"report_timestamp"`
	OccurrenceTimestamp *time.Time `json:"occurrence_timestamp,omitempty"`
	Offence             string     `json:"offence,omitempty"`
	Category            string     `json:"category,omitempty"`
	NeighbourhoodCode   *string    `json:"neighbourhood_code,omitempty"`
	Longitude           float64    `json:"longitude"`
	Latitude            float64    `json:"latitude"`
}

// NaturalKey returns the dedup key for the incident.
func (i *Incident) NaturalKey() string {
	return i.Dataset + "\x00" + i.EventUniqueID
}

// Window is a half-open time interval [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewWindow builds a window and rejects empty or inverted intervals.
func NewWindow(from, to time.Time) (Window, error) {
	if !from.Before(to) {
		return Window{}, &ValidationError{
			Field:   "window",
			Message: fmt.Sprintf("window start %s must be before end %s", from.Format(time.RFC3339), to.Format(time.RFC3339)),
		}
	}
	return Window{From: from.UTC(), To: to.UTC()}, nil
}

// Contains reports whether t falls inside the half-open window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.To.Sub(w.From)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
}

// Feature renders the incident as a GeoJSON point feature.
func (i *Incident) Feature() Feature {
	props := map[string]interface{}{
		"id":                   i.ID,
		"dataset":              i.Dataset,
		"event_unique_id":      i.EventUniqueID,
		"report_timestamp":     i.ReportTimestamp.UTC().Format(time.RFC3339),
		"occurrence_timestamp": nil,
		"offence":              nullable(i.Offence),
		"category":             nullable(i.Category),
		"neighbourhood_code":   nil,
	}
	if i.OccurrenceTimestamp != nil {
		props["occurrence_timestamp"] = i.OccurrenceTimestamp.UTC().Format(time.RFC3339)
	}
	if i.NeighbourhoodCode != nil {
		props["neighbourhood_code"] = *i.NeighbourhoodCode
	}
	return Feature{Type: "Feature", Geometry: PointGeometry(i.Longitude, i.Latitude), Properties: props}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
