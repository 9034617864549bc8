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

const topNeighbourhoodLimit = 10

// Stats returns date range hints and dashboard breakdowns. Per-dataset,
// per-neighbourhood and 30-day series come from the aggregate tables and
// reflect the last refresh.
func (db *DB) Stats(ctx context.Context) (stats *models.Stats, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("stats", "incidents", start, err) }()

	stats = &models.Stats{}
	var minTS, maxTS sql.NullTime
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(report_ts), MAX(report_ts) FROM incidents`,
	).Scan(&stats.TotalIncidents, &minTS, &maxTS); err != nil {
		return nil, fmt.Errorf("failed to query incident range: %w", err)
	}
	if minTS.Valid {
		t := asUTC(minTS.Time)
		stats.MinReportDate = &t
	}
	if maxTS.Valid {
		t := asUTC(maxTS.Time)
		stats.MaxReportDate = &t
	}

	if stats.LastSuccessfulRunAt, err = db.LastSuccessfulRunAt(ctx); err != nil {
		return nil, err
	}

	if stats.ByDataset, err = db.countBy(ctx,
		`SELECT dataset, SUM(count) FROM agg_daily_counts GROUP BY dataset ORDER BY 2 DESC, 1`); err != nil {
		return nil, fmt.Errorf("failed to query dataset counts: %w", err)
	}
	if stats.ByCategory, err = db.countBy(ctx,
		`SELECT COALESCE(category, ?), COUNT(*) FROM incidents GROUP BY 1 ORDER BY 2 DESC, 1`,
		models.OtherCategory); err != nil {
		return nil, fmt.Errorf("failed to query category counts: %w", err)
	}
	if stats.TopNeighbourhoods, err = db.countBy(ctx,
		`SELECT neighbourhood_code, SUM(count) FROM agg_neighbourhood_counts
		WHERE neighbourhood_code IS NOT NULL
		GROUP BY neighbourhood_code ORDER BY 2 DESC, 1 LIMIT ?`, topNeighbourhoodLimit); err != nil {
		return nil, fmt.Errorf("failed to query neighbourhood counts: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT day, count FROM agg_last_30d ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("failed to query last 30 days: %w", err)
	}
	defer rows.Close()
	stats.Last30d = make([]models.DailyCount, 0, 30)
	for rows.Next() {
		var (
			day time.Time
			n   int64
		)
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		stats.Last30d = append(stats.Last30d, models.DailyCount{Day: models.FormatBucket(day), Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily counts: %w", err)
	}
	return stats, nil
}

func (db *DB) countBy(ctx context.Context, query string, args ...interface{}) ([]models.CountBy, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.CountBy, 0)
	for rows.Next() {
		var c models.CountBy
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
