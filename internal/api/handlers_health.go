// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/metrics"
	"github.com/tomtom215/safetyview/internal/models"
)

// healthCheckTimeout bounds the database probe behind the health endpoints.
const healthCheckTimeout = 3 * time.Second

const serviceName = "safetyview"

// Health reports database reachability, spatial support, uptime and the
// last successful ingestion. It always answers 200; ok carries the verdict.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := models.HealthStatus{
		Service: serviceName,
		Version: h.version,
		DB:      "down",
		Uptime:  time.Since(h.startTime).Seconds(),
	}
	if err := h.store.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check: database unreachable")
	} else {
		status.OK = true
		status.DB = "up"
		status.SpatialAvailable = h.store.IsSpatialAvailable()
		metrics.SetSpatialAvailable(status.SpatialAvailable)
		last, err := h.store.LastSuccessfulRunAt(ctx)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check: cannot read last run")
		}
		status.LastRunAt = last
	}

	respondSuccess(w, status, models.Metadata{})
}

// HealthLive answers 200 while the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, models.Metadata{})
}

// HealthReady answers 200 only when the database is reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "Database not reachable", err)
		return
	}
	respondSuccess(w, map[string]interface{}{"ready": true}, models.Metadata{})
}

// Meta describes the API: version, configured datasets and endpoints.
func (h *Handler) Meta(w http.ResponseWriter, r *http.Request) {
	var datasets []string
	if h.config != nil {
		datasets = h.config.DatasetNames()
	}
	respondSuccess(w, models.MetaInfo{
		Name:          "SafetyView API",
		Version:       h.version,
		CityAgnostic:  true,
		Datasets:      datasets,
		Endpoints:     endpointList,
		MaxQueryLimit: models.MaxIncidentLimit,
	}, models.Metadata{})
}
