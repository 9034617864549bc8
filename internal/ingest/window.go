// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package ingest

import (
	"fmt"
	"time"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/models"
)

// SelectWindow picks the report_timestamp window for one incident dataset.
//
//   - backfill with a start date: [start, now)
//   - backfill without a start date: nil, meaning every upstream record
//   - incremental with a watermark: [watermark - overlap, now)
//   - incremental without a watermark: [now - window_days, now)
//
// A watermark whose overlap start is not before now (clock skew upstream)
// falls back to the window_days window.
func SelectWindow(now time.Time, cfg *config.ETLConfig, backfill bool, watermark *time.Time) (*models.Window, error) {
	now = now.UTC()

	if backfill {
		start, err := cfg.BackfillStartTime()
		if err != nil {
			return nil, &models.ValidationError{Field: "ETL_BACKFILL_START", Message: err.Error()}
		}
		if start.IsZero() {
			return nil, nil
		}
		w, err := models.NewWindow(start, now)
		if err != nil {
			return nil, fmt.Errorf("backfill window: %w", err)
		}
		return &w, nil
	}

	from := now.AddDate(0, 0, -cfg.WindowDays)
	if watermark != nil {
		if start := watermark.UTC().Add(-cfg.OverlapMargin); start.Before(now) {
			from = start
		}
	}

	w, err := models.NewWindow(from, now)
	if err != nil {
		return nil, fmt.Errorf("incremental window: %w", err)
	}
	return &w, nil
}
