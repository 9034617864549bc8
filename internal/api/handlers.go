// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"context"
	"time"

	"github.com/tomtom215/safetyview/internal/analytics"
	"github.com/tomtom215/safetyview/internal/cache"
	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/events"
	"github.com/tomtom215/safetyview/internal/flight"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/models"
)

// Store is the read side of the database the handlers query.
type Store interface {
	analytics.Store

	QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error)
	QueryNeighbourhoods(ctx context.Context, q models.NeighbourhoodQuery) ([]models.NeighbourhoodPolygon, error)
	Stats(ctx context.Context) (*models.Stats, error)
	ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error)
	GetRun(ctx context.Context, id string) (*models.IngestionRun, error)
	LastSuccessfulRunAt(ctx context.Context) (*time.Time, error)
	Ping(ctx context.Context) error
	IsSpatialAvailable() bool
}

// Handler holds the dependencies of the HTTP handlers.
//
// Handler methods are split across files:
//   - handlers_incidents.go: incident points as GeoJSON
//   - handlers_neighbourhoods.go: boundary polygons and neighbourhood comparison
//   - handlers_analytics.go: analytics and window comparison
//   - handlers_stats.go: dataset statistics and ingestion run history
//   - handlers_health.go: health probes and API metadata
type Handler struct {
	store     Store
	engine    *analytics.Engine
	cache     *cache.Cache
	flights   *flight.Group
	config    *config.Config
	version   string
	startTime time.Time
}

// NewHandler wires the handlers to the store and builds the analytics engine
// and response cache from the configuration.
func NewHandler(store Store, cfg *config.Config, version string) *Handler {
	return &Handler{
		store:     store,
		engine:    analytics.NewEngine(store, cfg.Cache.NeighbourhoodCapacity, cfg.Cache.TTL),
		cache:     cache.New("api_responses", cfg.Cache.TTL),
		flights:   &flight.Group{},
		config:    cfg,
		version:   version,
		startTime: time.Now(),
	}
}

// ClearCache drops every cached response.
func (h *Handler) ClearCache() {
	if h.cache != nil {
		h.cache.Clear()
		logging.Info().Msg("API response cache cleared")
	}
}

// Close stops the response cache's cleanup goroutine.
func (h *Handler) Close() {
	if h.cache != nil {
		h.cache.Stop()
	}
}

// OnRunCompleted invalidates cached responses after an ingestion run commits.
// Boundary changes also purge the neighbourhood envelope cache.
func (h *Handler) OnRunCompleted(ctx context.Context, ev events.RunCompleted) error {
	h.ClearCache()
	if ev.BoundariesChanged {
		h.engine.InvalidateNeighbourhoods()
	}
	logging.Ctx(ctx).Info().
		Str("run_id", ev.RunID).
		Str("status", string(ev.Status)).
		Strs("committed", ev.Committed).
		Bool("boundaries_changed", ev.BoundariesChanged).
		Msg("Caches invalidated after ingestion run")
	return nil
}

// queryTimeout returns the configured per-request database budget.
func (h *Handler) queryTimeout() time.Duration {
	if h.config == nil || h.config.Server.QueryTimeout <= 0 {
		return defaultQueryTimeout
	}
	return h.config.Server.QueryTimeout
}
