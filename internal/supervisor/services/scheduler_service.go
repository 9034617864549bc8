// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package services

import (
	"context"
	"fmt"
)

// StartStopper is the lifecycle of *ingest.Scheduler.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts the ingestion scheduler's Start/Stop lifecycle to
// suture. Stop aborts an in-flight run and waits for it to be recorded.
type SchedulerService struct {
	scheduler StartStopper
}

// NewSchedulerService wraps scheduler.
func NewSchedulerService(scheduler StartStopper) *SchedulerService {
	return &SchedulerService{scheduler: scheduler}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("ingestion scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("ingestion scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *SchedulerService) String() string {
	return "ingest-scheduler"
}
