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

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// truncUnits maps intervals to DuckDB date_trunc parts. 'week' truncates to
// the ISO week's Monday.
var truncUnits = map[models.Interval]string{
	models.IntervalDay:   "day",
	models.IntervalWeek:  "week",
	models.IntervalMonth: "month",
}

// CountTotals returns total, per-category and per-dataset counts for f.
// Categories with zero incidents are absent; NULL categories count as "other".
func (db *DB) CountTotals(ctx context.Context, f models.AnalyticsFilter) (totals models.Totals, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("analytics_totals", "incidents", start, err) }()

	return db.countTotals(ctx, db.conn, f)
}

func (db *DB) countTotals(ctx context.Context, q queryer, f models.AnalyticsFilter) (models.Totals, error) {
	var w whereBuilder
	w.addIncidentFilter(&f.IncidentFilter, db.spatialAvailable)
	w.addReportRange(&f.From, &f.To)

	query := `SELECT COALESCE(category, ?) AS cat, dataset, COUNT(*)
	FROM incidents` + w.String() + `
	GROUP BY cat, dataset`
	args := append([]interface{}{models.OtherCategory}, w.args...)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return models.Totals{}, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	totals := models.Totals{
		ByCategory: make(map[string]int64),
		ByDataset:  make(map[string]int64),
	}
	for rows.Next() {
		var (
			category, dataset string
			n                 int64
		)
		if err := rows.Scan(&category, &dataset, &n); err != nil {
			return models.Totals{}, fmt.Errorf("failed to scan totals: %w", err)
		}
		totals.Total += n
		totals.ByCategory[category] += n
		totals.ByDataset[dataset] += n
	}
	if err := rows.Err(); err != nil {
		return models.Totals{}, fmt.Errorf("failed to iterate totals: %w", err)
	}
	return totals, nil
}

// CountBuckets returns non-empty UTC buckets for f in ascending order.
// Gap filling is the caller's job.
func (db *DB) CountBuckets(ctx context.Context, f models.AnalyticsFilter, interval models.Interval) (buckets []models.BucketCount, err error) {
	if _, ok := truncUnits[interval]; !ok {
		return nil, unsupportedInterval(interval)
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("analytics_timeline", "incidents", start, err) }()

	return db.countBuckets(ctx, db.conn, f, interval)
}

// CountAnalytics returns totals and non-empty buckets for f read inside one
// transaction, so a load committing in between cannot make the timeline
// disagree with the total.
func (db *DB) CountAnalytics(ctx context.Context, f models.AnalyticsFilter, interval models.Interval) (totals models.Totals, buckets []models.BucketCount, err error) {
	if _, ok := truncUnits[interval]; !ok {
		return models.Totals{}, nil, unsupportedInterval(interval)
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("analytics", "incidents", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Totals{}, nil, fmt.Errorf("failed to begin analytics read: %w", err)
	}
	// Read only: rolling back releases the snapshot.
	defer func() { rollbackWithLog(tx, err) }()

	if totals, err = db.countTotals(ctx, tx, f); err != nil {
		return models.Totals{}, nil, err
	}
	if buckets, err = db.countBuckets(ctx, tx, f, interval); err != nil {
		return models.Totals{}, nil, err
	}
	return totals, buckets, nil
}

func unsupportedInterval(interval models.Interval) error {
	return &models.ValidationError{Field: "interval", Message: fmt.Sprintf("unsupported interval %q", interval)}
}

func (db *DB) countBuckets(ctx context.Context, q queryer, f models.AnalyticsFilter, interval models.Interval) ([]models.BucketCount, error) {
	unit := truncUnits[interval]
	var w whereBuilder
	w.addIncidentFilter(&f.IncidentFilter, db.spatialAvailable)
	w.addReportRange(&f.From, &f.To)

	query := fmt.Sprintf(`SELECT date_trunc('%s', report_ts) AS bucket, COUNT(*)
	FROM incidents%s
	GROUP BY bucket
	ORDER BY bucket`, unit, w.String())

	rows, err := q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var buckets []models.BucketCount
	for rows.Next() {
		var b models.BucketCount
		if err := rows.Scan(&b.Start, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		b.Start = asUTC(b.Start)
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate timeline: %w", err)
	}
	return buckets, nil
}
