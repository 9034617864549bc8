// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package analytics

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/safetyview/internal/models"
)

// CompareNeighbourhoods computes analytics over the bounding envelopes of
// two neighbourhoods and reports the delta. Any bbox already on f is
// replaced. Unknown codes wrap models.ErrNotFound.
func (e *Engine) CompareNeighbourhoods(ctx context.Context, codeA, codeB string, f models.AnalyticsFilter, interval models.Interval) (*models.NeighbourhoodComparison, error) {
	var na, nb *models.NeighbourhoodAnalytics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		na, err = e.neighbourhoodAnalytics(gctx, codeA, f, interval)
		return err
	})
	g.Go(func() error {
		var err error
		nb, err = e.neighbourhoodAnalytics(gctx, codeB, f, interval)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	diff, pct := models.Delta(na.Analytics.Totals.Total, nb.Analytics.Totals.Total)
	return &models.NeighbourhoodComparison{
		NeighbourhoodA: *na,
		NeighbourhoodB: *nb,
		Diff:           diff,
		Pct:            pct,
	}, nil
}

func (e *Engine) neighbourhoodAnalytics(ctx context.Context, code string, f models.AnalyticsFilter, interval models.Interval) (*models.NeighbourhoodAnalytics, error) {
	n, err := e.Neighbourhood(ctx, code)
	if err != nil {
		return nil, err
	}

	bbox := n.Bounds
	f.BBox = &bbox
	result, err := e.Compute(ctx, f, interval)
	if err != nil {
		return nil, err
	}
	return &models.NeighbourhoodAnalytics{
		AreaCode:  n.AreaCode,
		ShortCode: n.ShortCode,
		Name:      n.Name,
		BBox:      n.Bounds,
		Analytics: *result,
	}, nil
}

// Neighbourhood resolves code through the cache. Concurrent misses for the
// same code may both hit the store; the first insert wins.
func (e *Engine) Neighbourhood(ctx context.Context, code string) (*models.NeighbourhoodPolygon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &models.ValidationError{Field: "code", Message: "neighbourhood code is required"}
	}
	if n, ok := e.neighbourhoods.Get(code); ok {
		return &n, nil
	}

	n, err := e.store.GetNeighbourhood(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("neighbourhood %q: %w", code, err)
	}
	cached, _ := e.neighbourhoods.AddIfAbsent(code, *n)
	return &cached, nil
}

// InvalidateNeighbourhoods drops cached polygons after boundaries reload.
func (e *Engine) InvalidateNeighbourhoods() {
	e.neighbourhoods.Purge()
}
