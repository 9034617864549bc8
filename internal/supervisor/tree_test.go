// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// countingService runs until cancelled and can fail its first N starts.
type countingService struct {
	name   string
	starts atomic.Int32
	fails  int32
}

func (s *countingService) Serve(ctx context.Context) error {
	if n := s.starts.Add(1); n <= s.fails {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestNewTree_Defaults(t *testing.T) {
	t.Parallel()
	tree := NewTree(quietLogger(), TreeConfig{})

	want := DefaultTreeConfig()
	if tree.config != want {
		t.Errorf("config = %+v, want %+v", tree.config, want)
	}
}

func TestTree_StartsEveryLayer(t *testing.T) {
	t.Parallel()
	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})

	ingest := &countingService{name: "scheduler"}
	events := &countingService{name: "listener"}
	api := &countingService{name: "http"}
	tree.AddIngestService(ingest)
	tree.AddEventService(events)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool {
		return ingest.starts.Load() == 1 && events.starts.Load() == 1 && api.starts.Load() == 1
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTree_RestartsFailedServiceInIsolation(t *testing.T) {
	t.Parallel()
	tree := NewTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	flaky := &countingService{name: "listener", fails: 2}
	api := &countingService{name: "http"}
	tree.AddEventService(flaky)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return flaky.starts.Load() >= 3 })
	if n := api.starts.Load(); n != 1 {
		t.Errorf("api service started %d times, want 1", n)
	}

	cancel()
	<-errCh
}
