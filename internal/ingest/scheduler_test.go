// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/safetyview/internal/models"
)

type countingRunner struct {
	calls    atomic.Int32
	triggers chan models.RunTrigger
}

func (r *countingRunner) Run(_ context.Context, opts RunOptions) (*models.IngestionRun, error) {
	r.calls.Add(1)
	select {
	case r.triggers <- opts.Trigger:
	default:
	}
	return &models.IngestionRun{ID: "run", Trigger: opts.Trigger, Status: models.RunSucceeded}, nil
}

type countingAborter struct{ calls atomic.Int32 }

func (a *countingAborter) AbortStaleRuns(context.Context, time.Time) (int64, error) {
	a.calls.Add(1)
	return 1, nil
}

func TestSchedulerRunsOnStartupAndInterval(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{triggers: make(chan models.RunTrigger, 8)}
	aborter := &countingAborter{}
	s := NewScheduler(runner, aborter, 10*time.Millisecond, true)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	first := <-runner.triggers
	if first != models.TriggerStartup {
		t.Errorf("first trigger = %s, want startup", first)
	}
	select {
	case tr := <-runner.triggers:
		if tr != models.TriggerSchedule {
			t.Errorf("trigger = %s, want schedule", tr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no scheduled run")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if aborter.calls.Load() != 1 {
		t.Errorf("AbortStaleRuns calls = %d, want 1", aborter.calls.Load())
	}
	if s.LastRun() == nil {
		t.Error("LastRun() = nil after runs")
	}

	after := runner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if runner.calls.Load() != after {
		t.Error("scheduler kept running after Stop")
	}
}

func TestSchedulerWithoutInterval(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{triggers: make(chan models.RunTrigger, 1)}
	s := NewScheduler(runner, nil, 0, false)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if runner.calls.Load() != 0 {
		t.Errorf("runs = %d, want 0", runner.calls.Load())
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
