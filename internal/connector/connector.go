// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package connector

import (
	"context"

	"github.com/tomtom215/safetyview/internal/models"
)

// IncidentPageFunc receives one transformed page. Returning an error stops
// paging and the error is returned to the caller unchanged.
type IncidentPageFunc func(page []models.Incident) error

// BoundaryPageFunc receives one transformed page of polygons.
type BoundaryPageFunc func(page []models.NeighbourhoodPolygon) error

// Connector fetches incidents for one dataset. A nil window fetches every
// record the layer holds.
type Connector interface {
	FetchIncidents(ctx context.Context, window *models.Window, fn IncidentPageFunc) (FetchStats, error)
}

// BoundaryConnector fetches neighbourhood polygons.
type BoundaryConnector interface {
	FetchNeighbourhoods(ctx context.Context, fn BoundaryPageFunc) (FetchStats, error)
}

// FetchStats summarizes one fetch.
type FetchStats struct {
	Pages     int
	Received  int64 // raw upstream features
	Delivered int64 // rows handed to the page func
	Skipped   models.SkipCounts
	Requests  int
	Retries   int
}

func newFetchStats() FetchStats {
	return FetchStats{Skipped: make(models.SkipCounts)}
}

func (s *FetchStats) add(r requestStats) {
	s.Requests += r.attempts
	s.Retries += r.attempts - 1
}
