// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package middleware provides the HTTP infrastructure middleware shared by the
API router.

  - RequestID: X-Request-ID assignment plus request and correlation IDs in the
    logging context
  - PrometheusMetrics: request count, latency and in-flight gauge labelled by
    chi route pattern
  - Compression: gzip/deflate for JSON and GeoJSON bodies via chi's Compress

All three use the func(http.Handler) http.Handler shape so they mount
directly with chi's r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Compression())
	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(middleware.PrometheusMetrics)
	    r.Get("/incidents", h.Incidents)
	})
*/
package middleware
