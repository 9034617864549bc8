// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"context"
	"net/http"

	"github.com/tomtom215/safetyview/internal/models"
)

// Incidents returns incident points as a GeoJSON FeatureCollection, newest
// report first.
//
// Query: bbox, dataset, category (alias mci_category), offence, hood,
// date_from, date_to, limit (1..5000, default 500), offset.
func (h *Handler) Incidents(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r)
	req := parseIncidentsRequest(p)
	if err := p.Err(); err != nil {
		h.respondValidation(w, r, err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, apiErr)
		return
	}
	q, err := req.toQuery()
	if err != nil {
		h.respondValidation(w, r, err)
		return
	}

	h.execute(w, r, querySpec{endpoint: "incidents", params: q, geojson: true}, func(ctx context.Context) (interface{}, error) {
		rows, err := h.store.QueryIncidents(ctx, q)
		if err != nil {
			return nil, err
		}
		fc := models.NewFeatureCollection(len(rows))
		for i := range rows {
			fc.Features = append(fc.Features, rows[i].Feature())
		}
		return &fc, nil
	})
}

// respondValidation writes a 400 for a parameter error found outside the
// struct rules.
func (h *Handler) respondValidation(w http.ResponseWriter, r *http.Request, err error) {
	ce := classifyError(r.Context(), err)
	respondError(w, r, ce.status, ce.code, ce.message, nil)
}
