// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"fmt"
	"time"
)

const aggregateDataset = "aggregates"

// RefreshAggregates rebuilds the dashboard aggregate tables in one
// transaction, so readers see either the previous or the new snapshot.
func (db *DB) RefreshAggregates(ctx context.Context) error {
	return db.withConflictRetry(ctx, aggregateDataset, 0, func() error {
		return db.refreshAggregatesOnce(ctx, time.Now().UTC())
	})
}

func (db *DB) refreshAggregatesOnce(ctx context.Context, now time.Time) (err error) {
	start := time.Now()
	defer func() { observe("refresh", "aggregates", start, err) }()

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -29)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollbackWithLog(tx, err)
		}
	}()

	steps := []struct {
		name string
		sql  string
		args []interface{}
	}{
		{"clear daily counts", `DELETE FROM agg_daily_counts`, nil},
		{"build daily counts", `INSERT INTO agg_daily_counts (dataset, day, count)
			SELECT dataset, CAST(report_ts AS DATE) AS day, COUNT(*)
			FROM incidents
			GROUP BY dataset, day`, nil},
		{"clear neighbourhood counts", `DELETE FROM agg_neighbourhood_counts`, nil},
		{"build neighbourhood counts", `INSERT INTO agg_neighbourhood_counts (neighbourhood_code, dataset, count)
			SELECT neighbourhood_code, dataset, COUNT(*)
			FROM incidents
			GROUP BY neighbourhood_code, dataset`, nil},
		{"clear last 30 days", `DELETE FROM agg_last_30d`, nil},
		{"build last 30 days", `INSERT INTO agg_last_30d (day, count)
			SELECT day, SUM(count)
			FROM agg_daily_counts
			WHERE day >= CAST(? AS DATE)
			GROUP BY day`, []interface{}{since}},
	}
	for _, step := range steps {
		if _, err = tx.ExecContext(ctx, step.sql, step.args...); err != nil {
			return fmt.Errorf("failed to %s: %w", step.name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aggregate refresh: %w", err)
	}
	return nil
}
