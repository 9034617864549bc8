// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package connector

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/models"
)

// coordinateScale rounds coordinates to 6 decimal places (about 0.1 m).
const coordinateScale = 1e6

// FieldMapping names the upstream attributes that feed each incident field.
type FieldMapping struct {
	EventID        string
	ReportDate     string
	OccurrenceDate string
	Offence        string
	Category       string
	Neighbourhood  string
	Longitude      string
	Latitude       string
}

// FieldMappingFromConfig copies the configured attribute names.
func FieldMappingFromConfig(cfg config.FieldMappingConfig) FieldMapping {
	return FieldMapping{
		EventID:        cfg.EventID,
		ReportDate:     cfg.ReportDate,
		OccurrenceDate: cfg.OccurrenceDate,
		Offence:        cfg.Offence,
		Category:       cfg.Category,
		Neighbourhood:  cfg.Neighbourhood,
		Longitude:      cfg.Longitude,
		Latitude:       cfg.Latitude,
	}
}

// OutFields returns the comma-separated outFields parameter.
func (m FieldMapping) OutFields() string {
	fields := make([]string, 0, 8)
	for _, f := range []string{m.EventID, m.ReportDate, m.OccurrenceDate, m.Offence,
		m.Category, m.Neighbourhood, m.Longitude, m.Latitude} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return strings.Join(fields, ",")
}

// attributes is one feature's attribute bag. Lookups try the exact key first
// and then a case-insensitive match, since services disagree on casing.
type attributes map[string]json.RawMessage

func (a attributes) raw(name string) (json.RawMessage, bool) {
	if name == "" {
		return nil, false
	}
	if v, ok := a[name]; ok {
		return v, !isNull(v)
	}
	for k, v := range a {
		if strings.EqualFold(k, name) {
			return v, !isNull(v)
		}
	}
	return nil, false
}

func isNull(v json.RawMessage) bool {
	t := bytes.TrimSpace(v)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// str returns a string attribute, stringifying numbers. Missing, null and
// blank values yield "".
func (a attributes) str(name string) string {
	v, ok := a.raw(name)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// float returns a numeric attribute. Numeric strings are accepted.
func (a attributes) float(name string) (float64, bool, error) {
	v, ok := a.raw(name)
	if !ok {
		return 0, false, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, true, fmt.Errorf("%s is not a number", name)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%s is not a number: %q", name, s)
	}
	return f, true, nil
}

// timestamp parses epoch milliseconds (number or numeric string) or RFC3339.
func (a attributes) timestamp(name string) (*time.Time, error) {
	v, ok := a.raw(name)
	if !ok {
		return nil, nil
	}
	var ms float64
	if err := json.Unmarshal(v, &ms); err == nil {
		return epochMillis(ms)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, fmt.Errorf("%s has unsupported type", name)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochMillis(f)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%s: unparsable timestamp %q", name, s)
	}
	t = t.UTC()
	return &t, nil
}

func epochMillis(ms float64) (*time.Time, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return nil, fmt.Errorf("invalid epoch milliseconds %v", ms)
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t, nil
}

func roundCoordinate(v float64) float64 {
	return math.Round(v*coordinateScale) / coordinateScale
}

// TransformIncident converts one feature's attributes into an incident for
// dataset. When the row must be skipped the returned reason is non-empty.
func TransformIncident(dataset string, m FieldMapping, attrs map[string]json.RawMessage) (models.Incident, models.SkipReason) {
	a := attributes(attrs)

	inc := models.Incident{Dataset: dataset}
	inc.EventUniqueID = a.str(m.EventID)
	if inc.EventUniqueID == "" {
		return models.Incident{}, models.SkipMissingKey
	}

	report, err := a.timestamp(m.ReportDate)
	if err != nil {
		return models.Incident{}, models.SkipInvalidTimestamp
	}
	if report == nil {
		return models.Incident{}, models.SkipMissingTimestamp
	}
	inc.ReportTimestamp = *report

	occ, err := a.timestamp(m.OccurrenceDate)
	if err != nil {
		return models.Incident{}, models.SkipInvalidTimestamp
	}
	inc.OccurrenceTimestamp = occ

	lon, lonOK, lonErr := a.float(m.Longitude)
	lat, latOK, latErr := a.float(m.Latitude)
	if lonErr != nil || latErr != nil {
		return models.Incident{}, models.SkipInvalidCoordinates
	}
	if !lonOK || !latOK {
		return models.Incident{}, models.SkipMissingCoordinates
	}
	if reason := checkCoordinates(lon, lat); reason != "" {
		return models.Incident{}, reason
	}
	inc.Longitude = roundCoordinate(lon)
	inc.Latitude = roundCoordinate(lat)

	inc.Offence = a.str(m.Offence)
	inc.Category = a.str(m.Category)
	if hood := a.str(m.Neighbourhood); hood != "" {
		inc.NeighbourhoodCode = &hood
	}
	return inc, ""
}

// checkCoordinates rejects non-finite, out-of-range and null-island points.
// Feeds use (0, 0) as a placeholder for suppressed locations.
func checkCoordinates(lon, lat float64) models.SkipReason {
	for _, v := range []float64{lon, lat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.SkipInvalidCoordinates
		}
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return models.SkipInvalidCoordinates
	}
	if lon == 0 && lat == 0 {
		return models.SkipInvalidCoordinates
	}
	return ""
}
