// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/safetyview/internal/middleware"
)

// endpointList is advertised by /meta.
var endpointList = []string{
	"GET /api/v1/incidents",
	"GET /api/v1/neighbourhoods",
	"GET /api/v1/neighbourhoods/compare",
	"GET /api/v1/analytics",
	"GET /api/v1/analytics/compare",
	"GET /api/v1/stats",
	"GET /api/v1/ingest/runs",
	"GET /api/v1/ingest/runs/{id}",
	"GET /api/v1/health",
	"GET /api/v1/health/live",
	"GET /api/v1/health/ready",
	"GET /api/v1/meta",
	"GET /metrics",
}

// Router mounts the handlers behind the shared middleware stack.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.Compression())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})

	// Probes are not rate limited.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/meta", router.handler.Meta)
		r.Get("/incidents", router.handler.Incidents)
		r.Get("/neighbourhoods", router.handler.Neighbourhoods)
		r.Get("/neighbourhoods/compare", router.handler.CompareNeighbourhoods)
		r.Get("/analytics", router.handler.Analytics)
		r.Get("/analytics/compare", router.handler.AnalyticsCompare)
		r.Get("/stats", router.handler.Stats)
		r.Get("/ingest/runs", router.handler.IngestRuns)
		r.Get("/ingest/runs/{id}", router.handler.IngestRun)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
