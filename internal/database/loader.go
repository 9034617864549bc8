// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"time"

	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/models"
)

// withConflictRetry runs fn, re-running the whole batch after DuckDB
// transaction conflicts. Any final failure becomes a LoadConflictError; fn
// must leave nothing committed when it fails.
func (db *DB) withConflictRetry(ctx context.Context, dataset string, rows int, fn func() error) error {
	attempts := db.loadRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := db.loadRetryDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransactionConflict(err) || attempt == attempts {
			break
		}
		logging.Warn().
			Err(err).
			Str("dataset", dataset).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("Load hit a transaction conflict, retrying batch")

		select {
		case <-ctx.Done():
			return &models.LoadConflictError{Dataset: dataset, Rows: rows, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}
	return &models.LoadConflictError{Dataset: dataset, Rows: rows, Err: err}
}
