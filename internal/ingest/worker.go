// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package ingest

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/tomtom215/safetyview/internal/connector"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/metrics"
	"github.com/tomtom215/safetyview/internal/models"
)

// runDatasetIsolated runs one dataset and turns a panic into a FAILED
// dataset so the other workers keep going.
func (o *Orchestrator) runDatasetIsolated(ctx context.Context, run *models.IngestionRun, d *models.DatasetRun, s connector.Strategy) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().
				Str("dataset", d.Dataset).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Dataset worker panicked")
			if !d.State.IsTerminal() {
				o.fail(context.WithoutCancel(ctx), d, fmt.Errorf("panic: %v", r))
			}
		}
	}()
	o.runDataset(ctx, run, d, s)
}

func (o *Orchestrator) runDataset(ctx context.Context, run *models.IngestionRun, d *models.DatasetRun, s connector.Strategy) {
	logger := logging.Ctx(ctx).With().Str("dataset", d.Dataset).Str("kind", string(d.Kind)).Logger()
	started := o.now()
	d.StartedAt = started

	if err := ctx.Err(); err != nil {
		o.fail(context.WithoutCancel(ctx), d, fmt.Errorf("aborted before start: %w", err))
		return
	}

	var window *models.Window
	if s.Kind == models.KindIncidents {
		w, err := o.window(ctx, d.Dataset, run.Backfill)
		if err != nil {
			o.fail(ctx, d, err)
			return
		}
		window = w
		if w != nil {
			d.WindowStart, d.WindowEnd = &w.From, &w.To
		}
	}

	o.advance(ctx, d, models.StateFetching)
	logger.Info().Str("state", string(d.State)).Str("window", windowString(window)).Msg("Fetching dataset")

	load, stats, err := o.fetchWithRetry(ctx, d, s, window)
	d.RowsFetched = stats.Received
	d.RowsSkipped = int64(stats.Skipped.Total())
	d.SkipReasons = stats.Skipped.AsMap()
	if err != nil {
		o.fail(context.WithoutCancel(ctx), d, err)
		o.recordDataset(d, started)
		logger.Error().Err(err).Int64("rows", d.RowsFetched).Msg("Dataset fetch failed")
		return
	}

	o.advance(ctx, d, models.StateStaging)
	result, err := load(ctx)
	if err != nil {
		o.fail(context.WithoutCancel(ctx), d, err)
		o.recordDataset(d, started)
		logger.Error().Err(err).Msg("Dataset load rolled back")
		return
	}
	d.RowsLoaded = result.Upserted

	completed := o.now()
	d.CompletedAt = &completed
	// The rows are committed; record that even if the run is being cancelled.
	o.advance(context.WithoutCancel(ctx), d, models.StateCommitted)
	o.recordDataset(d, started)

	logger.Info().
		Str("state", string(d.State)).
		Int64("rows", d.RowsFetched).
		Int64("loaded", d.RowsLoaded).
		Int64("skipped", d.RowsSkipped).
		Int("deduped", result.Deduped).
		Dur("duration", completed.Sub(started)).
		Msg("Dataset committed")
}

func (o *Orchestrator) window(ctx context.Context, dataset string, backfill bool) (*models.Window, error) {
	var watermark *time.Time
	if !backfill {
		wm, err := o.store.Watermark(ctx, dataset)
		if err != nil {
			return nil, fmt.Errorf("read watermark: %w", err)
		}
		watermark = wm
	}
	return SelectWindow(o.now(), &o.cfg, backfill, watermark)
}

// loadFunc commits the rows buffered by a fetch.
type loadFunc func(ctx context.Context) (models.LoadResult, error)

// fetchWithRetry pulls the whole window into memory, retrying transient
// upstream failures up to FetchAttempts times. Each attempt starts from an
// empty buffer.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, d *models.DatasetRun, s connector.Strategy, window *models.Window) (loadFunc, connector.FetchStats, error) {
	var (
		load  loadFunc
		stats connector.FetchStats
		err   error
	)
	for attempt := 1; attempt <= o.cfg.FetchAttempts; attempt++ {
		d.FetchAttempt = attempt
		load, stats, err = o.fetchOnce(ctx, s, window)
		if err == nil {
			return load, stats, nil
		}
		if attempt == o.cfg.FetchAttempts || !models.IsTransientFetch(err) || ctx.Err() != nil {
			break
		}

		delay := o.cfg.FetchRetryDelay * time.Duration(1<<(attempt-1))
		metrics.RecordFetchRetry(d.Dataset)
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("dataset", d.Dataset).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Transient fetch failure, retrying dataset")
		if serr := o.sleep(ctx, delay); serr != nil {
			break
		}
	}
	return nil, stats, err
}

func (o *Orchestrator) fetchOnce(ctx context.Context, s connector.Strategy, window *models.Window) (loadFunc, connector.FetchStats, error) {
	switch s.Kind {
	case models.KindIncidents:
		var rows []models.Incident
		stats, err := s.Incidents.FetchIncidents(ctx, window, func(page []models.Incident) error {
			rows = append(rows, page...)
			return nil
		})
		if err != nil {
			return nil, stats, err
		}
		return func(ctx context.Context) (models.LoadResult, error) {
			return o.store.LoadIncidents(ctx, s.Dataset, rows)
		}, stats, nil

	case models.KindNeighbourhoods:
		var rows []models.NeighbourhoodPolygon
		stats, err := s.Boundaries.FetchNeighbourhoods(ctx, func(page []models.NeighbourhoodPolygon) error {
			rows = append(rows, page...)
			return nil
		})
		if err != nil {
			return nil, stats, err
		}
		return func(ctx context.Context) (models.LoadResult, error) {
			return o.store.LoadNeighbourhoods(ctx, rows)
		}, stats, nil

	default:
		return nil, connector.FetchStats{}, fmt.Errorf("dataset %s: unknown kind %q", s.Dataset, s.Kind)
	}
}

// advance applies a forward transition and persists it. An illegal
// transition here is a bug and panics into the worker's recover.
func (o *Orchestrator) advance(ctx context.Context, d *models.DatasetRun, to models.DatasetState) {
	if err := transition(d, to); err != nil {
		panic(err)
	}
	o.save(ctx, d)
}

// fail moves d to FAILED with err as its error and persists it. Terminal
// datasets are left alone.
func (o *Orchestrator) fail(ctx context.Context, d *models.DatasetRun, err error) {
	if d.State.IsTerminal() {
		return
	}
	if terr := transition(d, models.StateFailed); terr != nil {
		logging.Ctx(ctx).Error().Err(terr).Msg("Cannot fail dataset")
		return
	}
	d.Error = err.Error()
	completed := o.now()
	d.CompletedAt = &completed
	o.save(ctx, d)
}

// save persists d. Bookkeeping failures are logged, not fatal to the dataset.
func (o *Orchestrator) save(ctx context.Context, d *models.DatasetRun) {
	if err := o.store.SaveDatasetRun(ctx, d); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("dataset", d.Dataset).Str("state", string(d.State)).Msg("Failed to persist dataset state")
	}
}

func (o *Orchestrator) recordDataset(d *models.DatasetRun, started time.Time) {
	metrics.RecordDataset(d.Dataset, string(d.State), o.now().Sub(started), d.RowsFetched, d.RowsLoaded, d.SkipReasons)
}

func windowString(w *models.Window) string {
	if w == nil {
		return "all"
	}
	return w.String()
}
