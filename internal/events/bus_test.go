// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/safetyview/internal/models"
)

func sampleRun() *models.IngestionRun {
	done := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &models.IngestionRun{
		ID:          "run-1",
		Trigger:     models.TriggerSchedule,
		Status:      models.RunDegraded,
		CompletedAt: &done,
		Datasets: []models.DatasetRun{
			{Dataset: "robbery", Kind: models.KindIncidents, State: models.StateCommitted},
			{Dataset: "assault", Kind: models.KindIncidents, State: models.StateFailed},
			{Dataset: "neighbourhoods", Kind: models.KindNeighbourhoods, State: models.StateCommitted},
		},
	}
}

func TestNewRunCompleted(t *testing.T) {
	t.Parallel()

	ev := NewRunCompleted(sampleRun())
	if ev.EventID == "" || ev.RunID != "run-1" || ev.Status != models.RunDegraded {
		t.Errorf("event = %+v", ev)
	}
	if len(ev.Committed) != 2 || ev.Committed[0] != "robbery" || ev.Committed[1] != "neighbourhoods" {
		t.Errorf("Committed = %v", ev.Committed)
	}
	if !ev.BoundariesChanged {
		t.Error("BoundariesChanged = false, want true")
	}

	payload, err := ev.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalRunCompleted(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !back.CompletedAt.Equal(ev.CompletedAt) || back.EventID != ev.EventID {
		t.Errorf("decoded = %+v, want %+v", back, ev)
	}
}

func TestUnmarshalRunCompletedRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{"not json", `{"event_id":"x"}`} {
		if _, err := UnmarshalRunCompleted([]byte(payload)); err == nil {
			t.Errorf("UnmarshalRunCompleted(%q) succeeded", payload)
		}
	}
}

// roundTrip subscribes on bus and republishes until the handler sees the
// event; a subscription is not ready the instant Subscribe is called.
func roundTrip(t *testing.T, bus *Bus) RunCompleted {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan RunCompleted, 16)
	subErr := make(chan error, 1)
	go func() {
		subErr <- bus.Subscribe(ctx, func(_ context.Context, ev RunCompleted) error {
			got <- ev
			return nil
		})
	}()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(10 * time.Second)
	for {
		if err := bus.PublishRunCompleted(ctx, sampleRun()); err != nil {
			t.Fatalf("PublishRunCompleted() error = %v", err)
		}
		select {
		case ev := <-got:
			cancel()
			if err := <-subErr; !errors.Is(err, context.Canceled) {
				t.Errorf("Subscribe() error = %v, want context.Canceled", err)
			}
			return ev
		case err := <-subErr:
			t.Fatalf("Subscribe() returned early: %v", err)
		case <-deadline:
			t.Fatal("event not delivered")
		case <-ticker.C:
		}
	}
}

func TestGoChannelBus(t *testing.T) {
	t.Parallel()

	bus, err := New("", "")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = bus.Close() }()

	if bus.Transport() != TransportGoChannel || bus.Topic() != DefaultTopic {
		t.Errorf("transport = %s, topic = %s", bus.Transport(), bus.Topic())
	}
	if ev := roundTrip(t, bus); ev.RunID != "run-1" {
		t.Errorf("received run %q", ev.RunID)
	}
}

func TestNATSBusWithEmbeddedServer(t *testing.T) {
	t.Parallel()

	srv, err := NewEmbeddedServer("127.0.0.1", server.RANDOM_PORT)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	if !srv.IsRunning() {
		t.Fatal("embedded server not running")
	}

	bus, err := New("test.run.completed", srv.ClientURL())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = bus.Close() }()

	if bus.Transport() != TransportNATS {
		t.Errorf("transport = %s, want nats", bus.Transport())
	}
	ev := roundTrip(t, bus)
	if !ev.BoundariesChanged || ev.Status != models.RunDegraded {
		t.Errorf("received %+v", ev)
	}
}

func TestClosedBus(t *testing.T) {
	t.Parallel()

	bus, err := New("", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := bus.PublishRunCompleted(context.Background(), sampleRun()); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Publish() error = %v, want ErrBusClosed", err)
	}

	l := NewListener(bus, func(context.Context, RunCompleted) error { return nil })
	if err := l.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() error = %v, want ErrDoNotRestart", err)
	}
	if l.String() != "event-listener" {
		t.Errorf("String() = %q", l.String())
	}
}

func TestHandlerErrorsDoNotStopSubscription(t *testing.T) {
	t.Parallel()

	bus, err := New("", "")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := make(chan struct{}, 64)
	go func() {
		_ = bus.Subscribe(ctx, func(context.Context, RunCompleted) error {
			calls <- struct{}{}
			return errors.New("handler failed")
		})
	}()

	seen := 0
	deadline := time.After(10 * time.Second)
	for seen < 2 {
		_ = bus.PublishRunCompleted(ctx, sampleRun())
		select {
		case <-calls:
			seen++
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("handler called %d times, want 2", seen)
		}
	}
}
