// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type fakeScheduler struct {
	startErr error
	starts   atomic.Int32
	stops    atomic.Int32
}

func (f *fakeScheduler) Start(context.Context) error {
	f.starts.Add(1)
	return f.startErr
}

func (f *fakeScheduler) Stop() error {
	f.stops.Add(1)
	return nil
}

func TestSchedulerService_StartThenStopOnCancel(t *testing.T) {
	t.Parallel()
	sched := &fakeScheduler{}
	svc := NewSchedulerService(sched)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for sched.starts.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sched.stops.Load() != 0 {
		t.Fatal("scheduler stopped before cancellation")
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	if sched.stops.Load() != 1 {
		t.Errorf("Stop called %d times, want 1", sched.stops.Load())
	}
}

func TestSchedulerService_StartFailureIsRestarted(t *testing.T) {
	t.Parallel()
	sched := &fakeScheduler{startErr: errors.New("database locked")}

	sup := suture.New("test", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewSchedulerService(sched))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(time.Second)
	for sched.starts.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sched.starts.Load() < 2 {
		t.Errorf("scheduler started %d times, want a restart", sched.starts.Load())
	}
	if sched.stops.Load() != 0 {
		t.Error("Stop called for a scheduler that never started")
	}
	cancel()
	<-errCh
}
