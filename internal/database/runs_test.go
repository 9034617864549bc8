// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/safetyview/internal/models"
)

func newRun(id string, started time.Time, datasets ...string) *models.IngestionRun {
	run := &models.IngestionRun{
		ID:        id,
		Trigger:   models.TriggerCLI,
		Status:    models.RunRunning,
		StartedAt: started,
	}
	for _, ds := range datasets {
		run.Datasets = append(run.Datasets, models.DatasetRun{
			RunID:     id,
			Dataset:   ds,
			Kind:      models.KindIncidents,
			State:     models.StatePending,
			StartedAt: started,
		})
	}
	return run
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	started := ts("2024-03-01T00:00:00Z")
	run := newRun("run-1", started, "mci", "shootings")
	if err := db.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	winStart, winEnd := ts("2024-02-23T00:00:00Z"), started
	done := started.Add(time.Minute)
	ok := run.Datasets[0]
	ok.State = models.StateCommitted
	ok.WindowStart, ok.WindowEnd = &winStart, &winEnd
	ok.RowsFetched, ok.RowsLoaded, ok.RowsSkipped = 10, 9, 1
	ok.SkipReasons = map[string]int{"invalid_coordinates": 1}
	ok.FetchAttempt = 1
	ok.CompletedAt = &done
	if err := db.SaveDatasetRun(ctx, &ok); err != nil {
		t.Fatalf("SaveDatasetRun() error = %v", err)
	}

	failed := run.Datasets[1]
	failed.State = models.StateFailed
	failed.Error = "upstream returned 503"
	failed.FetchAttempt = 2
	failed.CompletedAt = &done
	if err := db.SaveDatasetRun(ctx, &failed); err != nil {
		t.Fatalf("SaveDatasetRun() error = %v", err)
	}

	run.Status = models.RunDegraded
	run.CompletedAt = &done
	if err := db.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != models.RunDegraded || got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("run = %+v", got)
	}
	if len(got.Datasets) != 2 {
		t.Fatalf("len(Datasets) = %d, want 2", len(got.Datasets))
	}
	mci := got.Datasets[0]
	if mci.Dataset != "mci" || mci.State != models.StateCommitted || mci.RowsLoaded != 9 {
		t.Errorf("mci dataset run = %+v", mci)
	}
	if mci.SkipReasons["invalid_coordinates"] != 1 {
		t.Errorf("SkipReasons = %v", mci.SkipReasons)
	}
	if mci.WindowStart == nil || !mci.WindowStart.Equal(winStart) {
		t.Errorf("WindowStart = %v, want %v", mci.WindowStart, winStart)
	}
	if got.Datasets[1].Error != "upstream returned 503" {
		t.Errorf("shootings error = %q", got.Datasets[1].Error)
	}

	last, err := db.LastSuccessfulRunAt(ctx)
	if err != nil {
		t.Fatalf("LastSuccessfulRunAt() error = %v", err)
	}
	if last == nil || !last.Equal(done) {
		t.Errorf("LastSuccessfulRunAt() = %v, want %v (degraded counts)", last, done)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	base := ts("2024-03-01T00:00:00Z")
	for i, id := range []string{"a", "b", "c"} {
		if err := db.CreateRun(ctx, newRun(id, base.Add(time.Duration(i)*time.Hour), "mci")); err != nil {
			t.Fatalf("CreateRun(%s) error = %v", id, err)
		}
	}

	runs, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("ListRuns() ids = %v", runIDs(runs))
	}
	for _, r := range runs {
		if len(r.Datasets) != 1 {
			t.Errorf("run %s has %d datasets, want 1", r.ID, len(r.Datasets))
		}
	}

	if _, err := db.GetRun(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestAbortStaleRuns(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	started := ts("2024-03-01T00:00:00Z")
	stale := newRun("stale", started, "mci", "shootings")
	stale.Datasets[0].State = models.StateCommitted
	if err := db.CreateRun(ctx, stale); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	finished := newRun("finished", started, "mci")
	if err := db.CreateRun(ctx, finished); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	end := started.Add(time.Minute)
	finished.Status = models.RunSucceeded
	finished.CompletedAt = &end
	if err := db.FinishRun(ctx, finished); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	n, err := db.AbortStaleRuns(ctx, started.Add(time.Hour))
	if err != nil {
		t.Fatalf("AbortStaleRuns() error = %v", err)
	}
	if n != 1 {
		t.Errorf("AbortStaleRuns() = %d, want 1", n)
	}

	got, err := db.GetRun(ctx, "stale")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != models.RunAborted {
		t.Errorf("status = %s, want aborted", got.Status)
	}
	states := map[string]models.DatasetState{}
	for _, d := range got.Datasets {
		states[d.Dataset] = d.State
	}
	if states["mci"] != models.StateCommitted || states["shootings"] != models.StateFailed {
		t.Errorf("dataset states = %v", states)
	}

	if got, _ := db.GetRun(ctx, "finished"); got.Status != models.RunSucceeded {
		t.Errorf("finished run changed to %s", got.Status)
	}
}

func runIDs(runs []models.IngestionRun) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
