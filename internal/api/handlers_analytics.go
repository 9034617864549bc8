// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"context"
	"net/http"
)

// Analytics returns totals by category and dataset plus a gap-filled
// timeline for [date_from, date_to).
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	req := parseAnalyticsRequest(newQueryParams(r))
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, apiErr)
		return
	}
	f, interval, err := req.toFilter()
	if err != nil {
		h.respondValidation(w, r, err)
		return
	}

	h.execute(w, r, querySpec{endpoint: "analytics", params: req}, func(ctx context.Context) (interface{}, error) {
		return h.engine.Compute(ctx, f, interval)
	})
}

// AnalyticsCompare computes two windows independently and reports
// diff = totalA - totalB and pct relative to B (null when B is empty).
func (h *Handler) AnalyticsCompare(w http.ResponseWriter, r *http.Request) {
	req := parseCompareWindowsRequest(newQueryParams(r))
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, apiErr)
		return
	}
	a, b, interval, err := req.toFilters()
	if err != nil {
		h.respondValidation(w, r, err)
		return
	}

	h.execute(w, r, querySpec{endpoint: "analytics_compare", params: req}, func(ctx context.Context) (interface{}, error) {
		return h.engine.CompareWindows(ctx, a, b, interval)
	})
}
