// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/safetyview/internal/testinfra"
)

// TestBusAcrossProcessesOverNATS mimics the cron ETL process publishing to
// a separate API process through an external broker.
func TestBusAcrossProcessesOverNATS(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker, err := testinfra.NewNATSContainer(ctx, "")
	if err != nil {
		t.Fatalf("NewNATSContainer() error = %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, broker)

	etl, err := New("", broker.URL)
	if err != nil {
		t.Fatalf("New(etl) error = %v", err)
	}
	defer func() { _ = etl.Close() }()

	api, err := New("", broker.URL)
	if err != nil {
		t.Fatalf("New(api) error = %v", err)
	}
	defer func() { _ = api.Close() }()

	got := make(chan RunCompleted, 8)
	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = api.Subscribe(subCtx, func(_ context.Context, ev RunCompleted) error {
			got <- ev
			return nil
		})
	}()

	deadline := time.After(30 * time.Second)
	for {
		if err := etl.PublishRunCompleted(ctx, sampleRun()); err != nil {
			t.Fatalf("PublishRunCompleted() error = %v", err)
		}
		select {
		case ev := <-got:
			if ev.RunID != "run-1" {
				t.Errorf("RunID = %q", ev.RunID)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("event not delivered across buses")
		}
	}
}
