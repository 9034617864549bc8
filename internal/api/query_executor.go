// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/safetyview/internal/cache"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/metrics"
	"github.com/tomtom215/safetyview/internal/models"
)

// QueryKeyHeader names the client's logical query. A newer request with the
// same key cancels the older one still in flight.
const QueryKeyHeader = "X-Query-Key"

// defaultQueryTimeout applies when no server.query_timeout is configured.
const defaultQueryTimeout = 30 * time.Second

// maxQueryKeyLen bounds client-supplied flight keys.
const maxQueryKeyLen = 128

// queryFunc runs one read against the store.
type queryFunc func(ctx context.Context) (interface{}, error)

// querySpec describes how execute runs and renders a query.
type querySpec struct {
	// endpoint names the query for cache keys, flight keys and metrics.
	endpoint string
	// params is the cache key material. Nil disables response caching.
	params interface{}
	// geojson writes the result as a bare FeatureCollection instead of the
	// envelope.
	geojson bool
}

// execute is the cache-first flow shared by the read endpoints:
//
//  1. serve a cached result when present
//  2. register the request under its X-Query-Key, cancelling an older one
//  3. run the query under the configured timeout
//  4. map errors to the envelope, counting superseded queries
//  5. cache and write the result
func (h *Handler) execute(w http.ResponseWriter, r *http.Request, spec querySpec, fn queryFunc) {
	start := time.Now()

	var cacheKey string
	if spec.params != nil && h.cache != nil {
		cacheKey = cache.GenerateKey(spec.endpoint, spec.params)
		if cached, ok := h.cache.Get(cacheKey); ok {
			h.writeResult(w, spec, cached, models.Metadata{Cached: true})
			return
		}
	}

	ctx, done := h.flights.Begin(r.Context(), flightKey(r, spec.endpoint))
	defer done()
	ctx, cancel := context.WithTimeout(ctx, h.queryTimeout())
	defer cancel()

	data, err := fn(ctx)
	if err != nil {
		ce := classifyError(ctx, err)
		if ce.code == ErrCodeSuperseded {
			metrics.RecordSuperseded(spec.endpoint)
			logging.Ctx(r.Context()).Debug().Str("endpoint", spec.endpoint).Msg("Query superseded")
		}
		var logErr error
		if ce.logged {
			logErr = err
		}
		respondError(w, r, ce.status, ce.code, ce.message, logErr)
		return
	}

	if cacheKey != "" {
		h.cache.Set(cacheKey, data)
	}
	h.writeResult(w, spec, data, models.Metadata{QueryTimeMS: time.Since(start).Milliseconds()})
}

func (h *Handler) writeResult(w http.ResponseWriter, spec querySpec, data interface{}, meta models.Metadata) {
	if spec.geojson {
		if fc, ok := data.(*models.FeatureCollection); ok {
			respondGeoJSON(w, fc)
			return
		}
	}
	if n, ok := resultCount(data); ok {
		meta.Count = &n
	}
	respondSuccess(w, data, meta)
}

// flightKey scopes the client's query key to the endpoint. Requests without
// a key are not tracked.
func flightKey(r *http.Request, endpoint string) string {
	key := r.Header.Get(QueryKeyHeader)
	if key == "" || len(key) > maxQueryKeyLen {
		return ""
	}
	return endpoint + "\x00" + key
}

func resultCount(data interface{}) (int, bool) {
	switch v := data.(type) {
	case []models.IngestionRun:
		return len(v), true
	case *models.FeatureCollection:
		return len(v.Features), true
	default:
		return 0, false
	}
}
