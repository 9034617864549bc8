// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/metrics"
)

const defaultQueryTimeout = 30 * time.Second

// ensureContext applies the configured query timeout when ctx has no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := defaultQueryTimeout
	if db.cfg != nil && db.cfg.QueryTimeout > 0 {
		timeout = db.cfg.QueryTimeout
	}
	if ctx == nil {
		return context.WithTimeout(context.Background(), timeout)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}
	return ctx, func() {}
}

// observe records a query's latency and error class, and logs lost
// connections loudly because every later query will fail too.
func observe(operation, table string, start time.Time, err error) {
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
	if isConnectionError(err) {
		logging.Error().Err(err).Str("operation", operation).Msg("Database connection lost")
	}
}

// Checkpoint forces a WAL checkpoint.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// GetDatabasePath returns the path to the database file.
func (db *DB) GetDatabasePath() string {
	return db.cfg.Path
}

// utcNaive normalises t before binding it to a TIMESTAMP column; the
// driver stores the instant as UTC wall time.
func utcNaive(t time.Time) time.Time {
	return t.UTC()
}

// asUTC normalises a scanned TIMESTAMP value.
func asUTC(t time.Time) time.Time {
	return t.UTC()
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return utcNaive(*t)
}

func nullableString(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func emptyToNull(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
