// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package models

import (
	"time"
)

// APIResponse is the standard JSON envelope for non-GeoJSON endpoints.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing information.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
	Count       *int      `json:"count,omitempty"`
}

// APIError is the error body of an APIResponse.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is returned by the health endpoint.
type HealthStatus struct {
	OK               bool       `json:"ok"`
	Service          string     `json:"service"`
	Version          string     `json:"version"`
	DB               string     `json:"db"`
	SpatialAvailable bool       `json:"spatial_available"`
	Uptime           float64    `json:"uptime_seconds"`
	LastRunAt        *time.Time `json:"last_successful_run_at,omitempty"`
}

// MetaInfo describes the API for clients.
type MetaInfo struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	CityAgnostic  bool     `json:"city_agnostic"`
	Datasets      []string `json:"datasets"`
	Endpoints     []string `json:"endpoints"`
	MaxQueryLimit int      `json:"max_query_limit"`
}
