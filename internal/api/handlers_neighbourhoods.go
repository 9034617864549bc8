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

// Neighbourhoods returns boundary polygons as a GeoJSON FeatureCollection.
// code matches either the long or the short area code.
func (h *Handler) Neighbourhoods(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r)
	req := parseNeighbourhoodsRequest(p)
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

	h.execute(w, r, querySpec{endpoint: "neighbourhoods", params: q, geojson: true}, func(ctx context.Context) (interface{}, error) {
		rows, err := h.store.QueryNeighbourhoods(ctx, q)
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

// CompareNeighbourhoods runs the same analytics over two neighbourhoods'
// bounding envelopes and returns both results with their difference.
// Unknown codes are 404.
func (h *Handler) CompareNeighbourhoods(w http.ResponseWriter, r *http.Request) {
	req := parseCompareNeighbourhoodsRequest(newQueryParams(r))
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, apiErr)
		return
	}
	f, interval, err := req.toFilter()
	if err != nil {
		h.respondValidation(w, r, err)
		return
	}

	h.execute(w, r, querySpec{endpoint: "neighbourhoods_compare", params: req}, func(ctx context.Context) (interface{}, error) {
		return h.engine.CompareNeighbourhoods(ctx, req.A, req.B, f, interval)
	})
}
