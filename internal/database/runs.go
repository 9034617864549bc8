// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/models"
)

// CreateRun records the start of an ingestion run and its pending datasets.
func (db *DB) CreateRun(ctx context.Context, run *models.IngestionRun) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollbackWithLog(tx, err)
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO ingestion_runs (id, trigger, status, backfill, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Trigger), string(run.Status), run.Backfill, utcNaive(run.StartedAt)); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	for i := range run.Datasets {
		if err = upsertDatasetRun(ctx, tx, &run.Datasets[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveDatasetRun persists a dataset's current state.
func (db *DB) SaveDatasetRun(ctx context.Context, d *models.DatasetRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return upsertDatasetRun(ctx, db.conn, d)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertDatasetRun(ctx context.Context, ex execer, d *models.DatasetRun) error {
	var reasons interface{}
	if len(d.SkipReasons) > 0 {
		b, err := json.Marshal(d.SkipReasons)
		if err != nil {
			return fmt.Errorf("failed to encode skip reasons: %w", err)
		}
		reasons = string(b)
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO ingestion_run_datasets (
			run_id, dataset, kind, state, window_start, window_end,
			rows_fetched, rows_loaded, rows_skipped, skip_reasons, error,
			fetch_attempts, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, dataset) DO UPDATE SET
			state = excluded.state,
			window_start = excluded.window_start,
			window_end = excluded.window_end,
			rows_fetched = excluded.rows_fetched,
			rows_loaded = excluded.rows_loaded,
			rows_skipped = excluded.rows_skipped,
			skip_reasons = excluded.skip_reasons,
			error = excluded.error,
			fetch_attempts = excluded.fetch_attempts,
			completed_at = excluded.completed_at`,
		d.RunID, d.Dataset, string(d.Kind), string(d.State),
		nullableTime(d.WindowStart), nullableTime(d.WindowEnd),
		d.RowsFetched, d.RowsLoaded, d.RowsSkipped, reasons, emptyToNull(d.Error),
		d.FetchAttempt, utcNaive(d.StartedAt), nullableTime(d.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to save dataset run %s/%s: %w", d.RunID, d.Dataset, err)
	}
	return nil
}

// FinishRun records a run's final status and completion time.
func (db *DB) FinishRun(ctx context.Context, run *models.IngestionRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx,
		`UPDATE ingestion_runs SET status = ?, completed_at = ? WHERE id = ?`,
		string(run.Status), nullableTime(run.CompletedAt), run.ID); err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	return nil
}

// AbortStaleRuns marks runs left "running" by a crashed process as aborted.
// DuckDB allows a single writer process, so any such row is stale.
func (db *DB) AbortStaleRuns(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE ingestion_runs SET status = ?, completed_at = ? WHERE status = ?`,
		string(models.RunAborted), utcNaive(now), string(models.RunRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to abort stale runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if _, err := db.conn.ExecContext(ctx,
			`UPDATE ingestion_run_datasets SET state = ?, error = COALESCE(error, 'interrupted'), completed_at = ?
			WHERE state NOT IN (?, ?)`,
			string(models.StateFailed), utcNaive(now), string(models.StateCommitted), string(models.StateFailed)); err != nil {
			return n, fmt.Errorf("failed to fail interrupted datasets: %w", err)
		}
	}
	return n, nil
}

// LastSuccessfulRunAt returns when the latest succeeded or degraded run
// completed, or nil.
func (db *DB) LastSuccessfulRunAt(ctx context.Context) (*time.Time, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var ts sql.NullTime
	if err := db.conn.QueryRowContext(ctx,
		`SELECT MAX(completed_at) FROM ingestion_runs WHERE status IN (?, ?)`,
		string(models.RunSucceeded), string(models.RunDegraded)).Scan(&ts); err != nil {
		return nil, fmt.Errorf("failed to query last successful run: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	t := asUTC(ts.Time)
	return &t, nil
}

// ListRuns returns the most recent runs with their dataset rows.
func (db *DB) ListRuns(ctx context.Context, limit int) (runs []models.IngestionRun, err error) {
	if limit < 1 {
		limit = 20
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("select", "ingestion_runs", start, err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, trigger, status, backfill, started_at, completed_at
		FROM ingestion_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	runs = make([]models.IngestionRun, 0, limit)
	index := make(map[string]int)
	for rows.Next() {
		var (
			r               models.IngestionRun
			trigger, status string
			started         time.Time
			completed       sql.NullTime
		)
		if err := rows.Scan(&r.ID, &trigger, &status, &r.Backfill, &started, &completed); err != nil {
			closeQuietly(rows)
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Trigger = models.RunTrigger(trigger)
		r.Status = models.RunStatus(status)
		r.StartedAt = asUTC(started)
		if completed.Valid {
			t := asUTC(completed.Time)
			r.CompletedAt = &t
		}
		r.Datasets = make([]models.DatasetRun, 0)
		index[r.ID] = len(runs)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		closeQuietly(rows)
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	closeWithLog(rows, "run rows")

	if len(runs) == 0 {
		return runs, nil
	}

	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	datasets, err := db.datasetRuns(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range datasets {
		if i, ok := index[d.RunID]; ok {
			runs[i].Datasets = append(runs[i].Datasets, d)
		}
	}
	return runs, nil
}

// GetRun returns one run by ID.
func (db *DB) GetRun(ctx context.Context, id string) (*models.IngestionRun, error) {
	runs, err := db.ListRuns(ctx, 1000)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("run %q: %w", id, models.ErrNotFound)
}

func (db *DB) datasetRuns(ctx context.Context, runIDs []string) ([]models.DatasetRun, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(runIDs)), ",")
	args := make([]interface{}, len(runIDs))
	for i, id := range runIDs {
		args[i] = id
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT run_id, dataset, kind, state, window_start, window_end,
			rows_fetched, rows_loaded, rows_skipped, skip_reasons, error, fetch_attempts,
			started_at, completed_at
		FROM ingestion_run_datasets
		WHERE run_id IN (`+placeholders+`)
		ORDER BY run_id, dataset`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset runs: %w", err)
	}
	defer rows.Close()

	var out []models.DatasetRun
	for rows.Next() {
		var (
			d                models.DatasetRun
			kind, state      string
			winStart, winEnd sql.NullTime
			reasons, errText sql.NullString
			started          time.Time
			completed        sql.NullTime
		)
		if err := rows.Scan(&d.RunID, &d.Dataset, &kind, &state, &winStart, &winEnd,
			&d.RowsFetched, &d.RowsLoaded, &d.RowsSkipped, &reasons, &errText, &d.FetchAttempt,
			&started, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan dataset run: %w", err)
		}
		d.Kind = models.DatasetKind(kind)
		d.State = models.DatasetState(state)
		d.WindowStart = optionalTime(winStart)
		d.WindowEnd = optionalTime(winEnd)
		d.CompletedAt = optionalTime(completed)
		d.StartedAt = asUTC(started)
		d.Error = errText.String
		if reasons.Valid && reasons.String != "" {
			if err := json.Unmarshal([]byte(reasons.String), &d.SkipReasons); err != nil {
				return nil, fmt.Errorf("failed to decode skip reasons: %w", err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func optionalTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := asUTC(t.Time)
	return &u
}
