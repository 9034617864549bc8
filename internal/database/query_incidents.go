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

	"github.com/tomtom215/safetyview/internal/models"
)

// QueryIncidents returns incidents matching q, newest report first.
func (db *DB) QueryIncidents(ctx context.Context, q models.IncidentQuery) (incidents []models.Incident, err error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("select", "incidents", start, err) }()

	var w whereBuilder
	w.addIncidentFilter(&q.IncidentFilter, db.spatialAvailable)
	w.addReportRange(q.From, q.To)

	query := `SELECT id, dataset, event_unique_id, report_ts, occ_ts, offence, category,
		neighbourhood_code, lon, lat
	FROM incidents` + w.String() + `
	ORDER BY report_ts DESC, id DESC
	LIMIT ? OFFSET ?`
	args := append(w.args, q.Limit, q.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	incidents = make([]models.Incident, 0, q.Limit)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incidents: %w", err)
	}
	return incidents, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIncident(s rowScanner) (models.Incident, error) {
	var (
		inc              models.Incident
		reportTS         time.Time
		occTS            sql.NullTime
		offence, cat, nc sql.NullString
	)
	if err := s.Scan(&inc.ID, &inc.Dataset, &inc.EventUniqueID, &reportTS, &occTS,
		&offence, &cat, &nc, &inc.Longitude, &inc.Latitude); err != nil {
		return models.Incident{}, fmt.Errorf("failed to scan incident: %w", err)
	}
	inc.ReportTimestamp = asUTC(reportTS)
	if occTS.Valid {
		t := asUTC(occTS.Time)
		inc.OccurrenceTimestamp = &t
	}
	inc.Offence = offence.String
	inc.Category = cat.String
	if nc.Valid {
		code := nc.String
		inc.NeighbourhoodCode = &code
	}
	return inc, nil
}

// GetIncident looks up one incident by natural key.
func (db *DB) GetIncident(ctx context.Context, dataset, eventUniqueID string) (inc *models.Incident, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("select", "incidents", start, err) }()

	row := db.conn.QueryRowContext(ctx, `SELECT id, dataset, event_unique_id, report_ts, occ_ts, offence,
		category, neighbourhood_code, lon, lat
	FROM incidents WHERE dataset = ? AND event_unique_id = ?`, dataset, eventUniqueID)
	found, err := scanIncident(row)
	if err != nil {
		if errorsIsNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &found, nil
}

// CountIncidents returns the number of stored incidents, optionally for one dataset.
func (db *DB) CountIncidents(ctx context.Context, dataset string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var w whereBuilder
	if dataset != "" {
		w.add("dataset = ?", dataset)
	}
	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM incidents"+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return n, nil
}

// Watermark returns the latest stored report timestamp for dataset, or nil
// when the dataset has no rows yet.
func (db *DB) Watermark(ctx context.Context, dataset string) (*time.Time, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var ts sql.NullTime
	if err := db.conn.QueryRowContext(ctx, `SELECT MAX(report_ts) FROM incidents WHERE dataset = ?`, dataset).Scan(&ts); err != nil {
		return nil, fmt.Errorf("failed to read watermark for %s: %w", dataset, err)
	}
	if !ts.Valid {
		return nil, nil
	}
	t := asUTC(ts.Time)
	return &t, nil
}
