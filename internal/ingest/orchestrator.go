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

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/connector"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/metrics"
	"github.com/tomtom215/safetyview/internal/models"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

// finalizeTimeout bounds bookkeeping that must outlive a cancelled run.
const finalizeTimeout = 30 * time.Second

// Store is the persistence the orchestrator writes through.
type Store interface {
	Watermark(ctx context.Context, dataset string) (*time.Time, error)
	LoadIncidents(ctx context.Context, dataset string, rows []models.Incident) (models.LoadResult, error)
	LoadNeighbourhoods(ctx context.Context, rows []models.NeighbourhoodPolygon) (models.LoadResult, error)
	RefreshAggregates(ctx context.Context) error

	CreateRun(ctx context.Context, run *models.IngestionRun) error
	SaveDatasetRun(ctx context.Context, d *models.DatasetRun) error
	FinishRun(ctx context.Context, run *models.IngestionRun) error
}

// Publisher announces finished runs. Implementations must be safe to call
// after the run context is cancelled.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, run *models.IngestionRun) error
}

// RunOptions selects what a run does.
type RunOptions struct {
	Trigger  models.RunTrigger
	Backfill bool
	// Datasets restricts the run to these identifiers. Empty means all.
	Datasets []string
}

// Orchestrator executes ingestion runs. One run at a time.
type Orchestrator struct {
	store     Store
	registry  *connector.Registry
	cfg       config.ETLConfig
	publisher Publisher

	runMu sync.Mutex

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator. publisher may be nil.
func NewOrchestrator(store Store, registry *connector.Registry, cfg config.ETLConfig, publisher Publisher) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.FetchAttempts < 1 {
		cfg.FetchAttempts = 1
	}
	return &Orchestrator{
		store:     store,
		registry:  registry,
		cfg:       cfg,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepContext,
	}
}

// Run executes one ingestion run and returns its summary. The returned error
// is non-nil only when the run could not be started or recorded; dataset
// failures are reported through the run's status and dataset rows.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*models.IngestionRun, error) {
	if !o.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.runMu.Unlock()

	strategies, err := o.selectStrategies(opts.Datasets)
	if err != nil {
		return nil, err
	}
	if opts.Trigger == "" {
		opts.Trigger = models.TriggerCLI
	}

	started := o.now()
	run := &models.IngestionRun{
		ID:        uuid.NewString(),
		Trigger:   opts.Trigger,
		Status:    models.RunRunning,
		Backfill:  opts.Backfill || o.cfg.Backfill,
		StartedAt: started,
		Datasets:  make([]models.DatasetRun, len(strategies)),
	}
	for i, s := range strategies {
		run.Datasets[i] = models.DatasetRun{
			RunID:     run.ID,
			Dataset:   s.Dataset,
			Kind:      s.Kind,
			State:     models.StatePending,
			StartedAt: started,
		}
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	ctx = logging.ContextWithRunID(ctx, run.ID)
	logger := logging.Ctx(ctx)
	logger.Info().
		Str("trigger", string(run.Trigger)).
		Bool("backfill", run.Backfill).
		Int("datasets", len(strategies)).
		Msg("Ingestion run started")

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)
	for i := range strategies {
		d, s := &run.Datasets[i], strategies[i]
		g.Go(func() error {
			o.runDatasetIsolated(ctx, run, d, s)
			return nil
		})
	}
	_ = g.Wait()

	return run, o.finish(ctx, run)
}

// finish settles leftovers, refreshes aggregates, persists and publishes.
// It runs on a detached context so a cancelled run is still recorded.
func (o *Orchestrator) finish(runCtx context.Context, run *models.IngestionRun) error {
	aborted := runCtx.Err() != nil
	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), finalizeTimeout)
	defer cancel()
	logger := logging.Ctx(runCtx)

	committed := 0
	for i := range run.Datasets {
		d := &run.Datasets[i]
		if !d.State.IsTerminal() {
			o.fail(ctx, d, errors.New("interrupted"))
		}
		if d.Committed() {
			committed++
		}
	}

	if committed > 0 {
		if err := o.store.RefreshAggregates(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to refresh aggregates")
		}
	}

	completed := o.now()
	run.CompletedAt = &completed
	run.Status = models.DeriveRunStatus(run.Datasets, aborted)

	var finishErr error
	if err := o.store.FinishRun(ctx, run); err != nil {
		finishErr = fmt.Errorf("failed to finalize run %s: %w", run.ID, err)
	}

	metrics.RecordRun(string(run.Status), string(run.Trigger), completed.Sub(run.StartedAt), committed > 0, completed)

	if committed > 0 && o.publisher != nil {
		if err := o.publisher.PublishRunCompleted(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish run completion")
		}
	}

	event := logger.Info()
	if run.Status == models.RunFailed || run.Status == models.RunAborted {
		event = logger.Warn()
	}
	event.
		Str("status", string(run.Status)).
		Int("committed", committed).
		Int("datasets", len(run.Datasets)).
		Dur("duration", completed.Sub(run.StartedAt)).
		Msg("Ingestion run finished")

	return finishErr
}

// selectStrategies resolves the requested datasets through the registry.
func (o *Orchestrator) selectStrategies(names []string) ([]connector.Strategy, error) {
	if len(names) == 0 {
		all := o.registry.Strategies()
		if len(all) == 0 {
			return nil, &models.ValidationError{Field: "datasets", Message: "no datasets configured"}
		}
		return all, nil
	}

	seen := make(map[string]bool, len(names))
	out := make([]connector.Strategy, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		s, ok := o.registry.Lookup(name)
		if !ok {
			return nil, &models.ValidationError{Field: "datasets", Message: fmt.Sprintf("unknown dataset %q", name)}
		}
		out = append(out, s)
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
