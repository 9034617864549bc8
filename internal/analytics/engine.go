// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/safetyview/internal/cache"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/models"
)

// Store is the read side of the incident store used by the engine.
type Store interface {
	// CountAnalytics returns totals and non-empty buckets from one snapshot.
	CountAnalytics(ctx context.Context, f models.AnalyticsFilter, interval models.Interval) (models.Totals, []models.BucketCount, error)
	GetNeighbourhood(ctx context.Context, code string) (*models.NeighbourhoodPolygon, error)
}

// DefaultNeighbourhoodCacheSize bounds the neighbourhood lookup cache.
const DefaultNeighbourhoodCacheSize = 512

// Engine computes analytics over the incident store.
type Engine struct {
	store          Store
	neighbourhoods *cache.LRU[string, models.NeighbourhoodPolygon]
}

// NewEngine creates an engine. Neighbourhood polygons are cached for ttl
// (zero keeps them until evicted), at most cacheSize entries.
func NewEngine(store Store, cacheSize int, ttl time.Duration) *Engine {
	if cacheSize <= 0 {
		cacheSize = DefaultNeighbourhoodCacheSize
	}
	return &Engine{
		store:          store,
		neighbourhoods: cache.NewLRU[string, models.NeighbourhoodPolygon]("neighbourhoods", cacheSize, ttl),
	}
}

// Compute returns totals and a gap-filled timeline for f.
func (e *Engine) Compute(ctx context.Context, f models.AnalyticsFilter, interval models.Interval) (*models.AnalyticsResult, error) {
	interval, err := models.ParseInterval(string(interval))
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.From, f.To = f.From.UTC(), f.To.UTC()

	// Fail on oversized ranges before touching the store.
	starts, err := bucketStarts(f.From, f.To, interval)
	if err != nil {
		return nil, err
	}

	totals, sparse, err := e.store.CountAnalytics(ctx, f, interval)
	if err != nil {
		return nil, fmt.Errorf("compute analytics: %w", err)
	}

	if totals.ByCategory == nil {
		totals.ByCategory = map[string]int64{}
	}
	if totals.ByDataset == nil {
		totals.ByDataset = map[string]int64{}
	}

	return &models.AnalyticsResult{
		Totals:   totals,
		Timeline: fillTimeline(starts, sparse),
		Interval: interval,
		From:     f.From,
		To:       f.To,
	}, nil
}

// CompareWindows computes a and b independently and reports their delta.
func (e *Engine) CompareWindows(ctx context.Context, a, b models.AnalyticsFilter, interval models.Interval) (*models.WindowComparison, error) {
	var ra, rb *models.AnalyticsResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ra, err = e.Compute(gctx, a, interval)
		return err
	})
	g.Go(func() error {
		var err error
		rb, err = e.Compute(gctx, b, interval)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	diff, pct := models.Delta(ra.Totals.Total, rb.Totals.Total)
	logging.Ctx(ctx).Debug().
		Int64("total_a", ra.Totals.Total).
		Int64("total_b", rb.Totals.Total).
		Int64("diff", diff).
		Msg("Compared analytics windows")

	return &models.WindowComparison{WindowA: *ra, WindowB: *rb, Diff: diff, Pct: pct}, nil
}
