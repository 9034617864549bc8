// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"strings"
	"time"

	"github.com/tomtom215/safetyview/internal/models"
)

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// String returns " WHERE ..." or "" when there are no conditions.
func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// likeEscaper escapes LIKE wildcards so user input matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// addIncidentFilter appends the attribute and spatial conditions shared by
// map queries and analytics. Point-in-envelope is boundary inclusive; the
// lon/lat range is exact for points and lets DuckDB prune row groups before
// the ST_Intersects check.
func (w *whereBuilder) addIncidentFilter(f *models.IncidentFilter, spatial bool) {
	if b := f.BBox; b != nil {
		w.add("lon BETWEEN ? AND ?", b.West, b.East)
		w.add("lat BETWEEN ? AND ?", b.South, b.North)
		if spatial {
			w.add("ST_Intersects(geom, ST_MakeEnvelope(?, ?, ?, ?))", b.West, b.South, b.East, b.North)
		}
	}
	if f.Dataset != "" {
		w.add("dataset = ?", f.Dataset)
	}
	if f.Category != "" {
		w.add("COALESCE(category, ?) = ?", models.OtherCategory, f.Category)
	}
	if f.Offence != "" {
		w.add(`offence ILIKE ? ESCAPE '\'`, containsPattern(f.Offence))
	}
	if f.NeighbourhoodCode != "" {
		w.add("neighbourhood_code = ?", f.NeighbourhoodCode)
	}
}

// addReportRange appends the half-open [from, to) report timestamp range.
func (w *whereBuilder) addReportRange(from, to *time.Time) {
	if from != nil {
		w.add("report_ts >= ?", utcNaive(*from))
	}
	if to != nil {
		w.add("report_ts < ?", utcNaive(*to))
	}
}

// addEnvelopeOverlap appends neighbourhood bounding box overlap and, with
// spatial SQL, exact polygon intersection.
func (w *whereBuilder) addEnvelopeOverlap(b *models.BBox, spatial bool) {
	if b == nil {
		return
	}
	w.add("bbox_xmax >= ? AND bbox_xmin <= ?", b.West, b.East)
	w.add("bbox_ymax >= ? AND bbox_ymin <= ?", b.South, b.North)
	if spatial {
		w.add("ST_Intersects(geom, ST_MakeEnvelope(?, ?, ?, ?))", b.West, b.South, b.East, b.North)
	}
}
