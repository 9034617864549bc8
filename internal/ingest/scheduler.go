// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/models"
)

// StaleRunAborter closes out runs a previous process left running.
type StaleRunAborter interface {
	AbortStaleRuns(ctx context.Context, now time.Time) (int64, error)
}

// Runner is the part of the orchestrator the scheduler drives.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (*models.IngestionRun, error)
}

// Scheduler runs ingestion on a fixed interval inside the API process.
type Scheduler struct {
	runner       Runner
	aborter      StaleRunAborter
	interval     time.Duration
	runOnStartup bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun *models.IngestionRun
}

// NewScheduler creates a scheduler. An interval of zero disables periodic
// runs; aborter may be nil.
func NewScheduler(runner Runner, aborter StaleRunAborter, interval time.Duration, runOnStartup bool) *Scheduler {
	return &Scheduler{
		runner:       runner,
		aborter:      aborter,
		interval:     interval,
		runOnStartup: runOnStartup,
	}
}

// Start aborts stale runs and launches the schedule loop. It returns once
// the loop is running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}

	if s.aborter != nil {
		n, err := s.aborter.AbortStaleRuns(ctx, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to abort stale runs: %w", err)
		}
		if n > 0 {
			logging.Warn().Int64("runs", n).Msg("Marked interrupted ingestion runs as aborted")
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(loopCtx)

	logging.Info().
		Dur("interval", s.interval).
		Bool("run_on_startup", s.runOnStartup).
		Msg("Ingestion scheduler started")
	return nil
}

// Stop cancels the loop, aborting an in-flight run, and waits for it.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	s.wg.Wait()
	logging.Info().Msg("Ingestion scheduler stopped")
	return nil
}

// LastRun returns the most recent run started by the scheduler, or nil.
func (s *Scheduler) LastRun() *models.IngestionRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.runOnStartup {
		s.runOnce(ctx, models.TriggerStartup)
	}
	if s.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, models.TriggerSchedule)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, trigger models.RunTrigger) {
	if ctx.Err() != nil {
		return
	}
	run, err := s.runner.Run(ctx, RunOptions{Trigger: trigger})
	switch {
	case errors.Is(err, ErrRunInProgress):
		logging.Info().Str("trigger", string(trigger)).Msg("Skipping scheduled ingestion, a run is in progress")
		return
	case err != nil:
		logging.Error().Err(err).Str("trigger", string(trigger)).Msg("Scheduled ingestion failed")
	}
	if run != nil {
		s.mu.Lock()
		s.lastRun = run
		s.mu.Unlock()
	}
}
