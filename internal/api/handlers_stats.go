// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Stats returns the dataset overview: report date range, totals by dataset
// and category, the last 30 days and the last successful run.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, querySpec{endpoint: "stats", params: "stats"}, func(ctx context.Context) (interface{}, error) {
		return h.store.Stats(ctx)
	})
}

// IngestRuns lists recent ingestion runs with their per-dataset results.
// Run history is never cached.
func (h *Handler) IngestRuns(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r)
	req := parseRunsRequest(p)
	if err := p.Err(); err != nil {
		h.respondValidation(w, r, err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, apiErr)
		return
	}

	h.execute(w, r, querySpec{endpoint: "ingest_runs"}, func(ctx context.Context) (interface{}, error) {
		return h.store.ListRuns(ctx, req.Limit)
	})
}

// IngestRun returns one run by ID.
func (h *Handler) IngestRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.execute(w, r, querySpec{endpoint: "ingest_run"}, func(ctx context.Context) (interface{}, error) {
		return h.store.GetRun(ctx, id)
	})
}
