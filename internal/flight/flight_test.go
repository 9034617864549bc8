// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package flight

import (
	"context"
	"testing"
	"time"
)

func TestBeginCancelsOlderRequest(t *testing.T) {
	t.Parallel()

	var g Group
	first, doneFirst := g.Begin(context.Background(), "incidents")
	second, doneSecond := g.Begin(context.Background(), "incidents")
	defer doneSecond()

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("older request was not cancelled")
	}
	if !Superseded(first) {
		t.Errorf("cause = %v, want ErrSuperseded", context.Cause(first))
	}
	if second.Err() != nil {
		t.Errorf("newer request cancelled: %v", second.Err())
	}

	// Finishing the superseded request must not drop the newer one.
	doneFirst()
	if g.InFlight() != 1 {
		t.Errorf("InFlight() = %d, want 1", g.InFlight())
	}
}

func TestBeginKeysAreIndependent(t *testing.T) {
	t.Parallel()

	var g Group
	a, doneA := g.Begin(context.Background(), "a")
	defer doneA()
	b, doneB := g.Begin(context.Background(), "b")
	defer doneB()

	if a.Err() != nil || b.Err() != nil {
		t.Error("requests for different keys interfered")
	}
	if g.InFlight() != 2 {
		t.Errorf("InFlight() = %d, want 2", g.InFlight())
	}
}

func TestDoneReleasesKey(t *testing.T) {
	t.Parallel()

	var g Group
	ctx, done := g.Begin(context.Background(), "k")
	done()
	if g.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", g.InFlight())
	}
	if ctx.Err() == nil {
		t.Error("context not cancelled after done")
	}
	if Superseded(ctx) {
		t.Error("normal completion reported as superseded")
	}
}

func TestEmptyKeyIsNotTracked(t *testing.T) {
	t.Parallel()

	var g Group
	a, doneA := g.Begin(context.Background(), "")
	defer doneA()
	b, doneB := g.Begin(context.Background(), "")
	defer doneB()

	if a.Err() != nil || b.Err() != nil {
		t.Error("untracked requests cancelled each other")
	}
	if g.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", g.InFlight())
	}
}

func TestParentCancellationPropagates(t *testing.T) {
	t.Parallel()

	var g Group
	parent, cancel := context.WithCancel(context.Background())
	ctx, done := g.Begin(parent, "k")
	defer done()
	cancel()

	<-ctx.Done()
	if Superseded(ctx) {
		t.Error("parent cancellation reported as superseded")
	}
}
