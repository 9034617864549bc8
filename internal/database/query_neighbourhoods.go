// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/models"
)

// geometrySelect returns the repaired geometry when spatial SQL is
// available and the stored GeoJSON otherwise.
func (db *DB) geometrySelect() string {
	if db.spatialAvailable {
		return "COALESCE(CAST(ST_AsGeoJSON(geom) AS VARCHAR), geojson)"
	}
	return "geojson"
}

func (db *DB) neighbourhoodColumns() string {
	return "area_code, short_code, name, " + db.geometrySelect() +
		", bbox_xmin, bbox_ymin, bbox_xmax, bbox_ymax"
}

// QueryNeighbourhoods returns polygons matching q ordered by area code.
func (db *DB) QueryNeighbourhoods(ctx context.Context, q models.NeighbourhoodQuery) (result []models.NeighbourhoodPolygon, err error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("select", "neighbourhoods", start, err) }()

	var w whereBuilder
	if q.Code != "" {
		w.add("(area_code = ? OR short_code = ?)", q.Code, q.Code)
	}
	w.addEnvelopeOverlap(q.BBox, db.spatialAvailable)

	query := "SELECT " + db.neighbourhoodColumns() + " FROM neighbourhoods" + w.String() +
		" ORDER BY area_code LIMIT ?"
	rows, err := db.conn.QueryContext(ctx, query, append(w.args, q.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbourhoods: %w", err)
	}
	defer rows.Close()

	result = make([]models.NeighbourhoodPolygon, 0)
	for rows.Next() {
		n, err := scanNeighbourhood(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate neighbourhoods: %w", err)
	}
	return result, nil
}

// GetNeighbourhood resolves an area code or short code. An exact area code
// match wins over a short code match.
func (db *DB) GetNeighbourhood(ctx context.Context, code string) (n *models.NeighbourhoodPolygon, err error) {
	if code == "" {
		return nil, &models.ValidationError{Field: "code", Message: "neighbourhood code is required"}
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("select", "neighbourhoods", start, err) }()

	row := db.conn.QueryRowContext(ctx, "SELECT "+db.neighbourhoodColumns()+
		` FROM neighbourhoods
		WHERE area_code = ? OR short_code = ?
		ORDER BY (area_code = ?) DESC, area_code
		LIMIT 1`, code, code, code)
	found, err := scanNeighbourhood(row)
	if err != nil {
		if errorsIsNoRows(err) {
			return nil, fmt.Errorf("neighbourhood %q: %w", code, models.ErrNotFound)
		}
		return nil, err
	}
	return &found, nil
}

// CountNeighbourhoods returns the number of stored polygons.
func (db *DB) CountNeighbourhoods(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM neighbourhoods").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count neighbourhoods: %w", err)
	}
	return n, nil
}

func scanNeighbourhood(s rowScanner) (models.NeighbourhoodPolygon, error) {
	var (
		n           models.NeighbourhoodPolygon
		short, name sql.NullString
		geojson     string
	)
	if err := s.Scan(&n.AreaCode, &short, &name, &geojson,
		&n.Bounds.West, &n.Bounds.South, &n.Bounds.East, &n.Bounds.North); err != nil {
		return models.NeighbourhoodPolygon{}, fmt.Errorf("failed to scan neighbourhood: %w", err)
	}
	n.ShortCode = short.String
	n.Name = name.String
	if err := json.Unmarshal([]byte(geojson), &n.Geometry); err != nil {
		return models.NeighbourhoodPolygon{}, fmt.Errorf("failed to decode geometry for %s: %w", n.AreaCode, err)
	}
	return n, nil
}
