// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/models"
)

func TestTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to models.DatasetState
		ok       bool
	}{
		{models.StatePending, models.StateFetching, true},
		{models.StatePending, models.StateFailed, true},
		{models.StateFetching, models.StateStaging, true},
		{models.StateFetching, models.StateFailed, true},
		{models.StateStaging, models.StateCommitted, true},
		{models.StateStaging, models.StateFailed, true},
		{models.StatePending, models.StateStaging, false},
		{models.StatePending, models.StateCommitted, false},
		{models.StateFetching, models.StateCommitted, false},
		{models.StateCommitted, models.StateFailed, false},
		{models.StateFailed, models.StatePending, false},
		{models.StateStaging, models.StateFetching, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			d := &models.DatasetRun{Dataset: "robbery", State: tt.from}
			err := transition(d, tt.to)
			if tt.ok {
				if err != nil || d.State != tt.to {
					t.Errorf("transition() = %v, state %s", err, d.State)
				}
				return
			}
			var ite *IllegalTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("transition() error = %v, want IllegalTransitionError", err)
			}
			if d.State != tt.from {
				t.Errorf("state changed to %s on illegal transition", d.State)
			}
		})
	}
}

func TestSelectWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	watermark := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	future := now.Add(100 * time.Hour)
	base := config.ETLConfig{WindowDays: 7, OverlapMargin: 72 * time.Hour}
	withStart := base
	withStart.BackfillStart = "2024-01-01"
	badStart := base
	badStart.BackfillStart = "01/01/2024"
	lateStart := base
	lateStart.BackfillStart = "2030-01-01"

	tests := []struct {
		name      string
		cfg       config.ETLConfig
		backfill  bool
		watermark *time.Time
		wantNil   bool
		wantFrom  time.Time
		wantErr   bool
	}{
		{name: "incremental from watermark", cfg: base, watermark: &watermark, wantFrom: watermark.Add(-72 * time.Hour)},
		{name: "incremental without watermark", cfg: base, wantFrom: now.AddDate(0, 0, -7)},
		{name: "future watermark", cfg: base, watermark: &future, wantFrom: now.AddDate(0, 0, -7)},
		{name: "backfill from start", cfg: withStart, backfill: true, wantFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "backfill ignores watermark", cfg: withStart, backfill: true, watermark: &watermark, wantFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "backfill everything", cfg: base, backfill: true, wantNil: true},
		{name: "bad backfill start", cfg: badStart, backfill: true, wantErr: true},
		{name: "backfill start after now", cfg: lateStart, backfill: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, err := SelectWindow(now, &tt.cfg, tt.backfill, tt.watermark)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SelectWindow() = %v, want error", w)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectWindow() error = %v", err)
			}
			if tt.wantNil {
				if w != nil {
					t.Errorf("SelectWindow() = %v, want nil", w)
				}
				return
			}
			if !w.From.Equal(tt.wantFrom) || !w.To.Equal(now) {
				t.Errorf("SelectWindow() = %v, want [%s, %s)", w, tt.wantFrom, now)
			}
		})
	}
}
