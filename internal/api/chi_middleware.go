// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/metrics"
)

// ChiMiddlewareConfig holds the CORS and rate limit settings.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSExposedHeaders []string
	CORSMaxAge         int // seconds

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultChiMiddlewareConfig returns the read-only API defaults. CORS
// origins are empty and must be configured explicitly.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{http.MethodGet, http.MethodOptions},
		CORSAllowedHeaders: []string{"Content-Type", "Accept", QueryKeyHeader, "X-Request-ID"},
		CORSExposedHeaders: []string{"X-Request-ID", "ETag"},
		CORSMaxAge:         86400,

		RateLimitRequests: 300,
		RateLimitWindow:   time.Minute,
	}
}

// ChiMiddlewareConfigFromServer builds the middleware config from the
// server section.
func ChiMiddlewareConfigFromServer(s config.ServerConfig) *ChiMiddlewareConfig {
	c := DefaultChiMiddlewareConfig()
	c.CORSAllowedOrigins = s.CORSOrigins
	if s.RateLimitRequests > 0 {
		c.RateLimitRequests = s.RateLimitRequests
	}
	if s.RateLimitWindow > 0 {
		c.RateLimitWindow = s.RateLimitWindow
	}
	c.RateLimitDisabled = s.RateLimitDisabled
	return c
}

// ChiMiddleware provides the chi-compatible CORS and rate limit handlers.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware builds the middleware. A nil config uses the defaults.
func NewChiMiddleware(c *ChiMiddlewareConfig) *ChiMiddleware {
	if c == nil {
		c = DefaultChiMiddlewareConfig()
	}
	return &ChiMiddleware{
		config: c,
		cors: cors.Handler(cors.Options{
			AllowedOrigins:   c.CORSAllowedOrigins,
			AllowedMethods:   c.CORSAllowedMethods,
			AllowedHeaders:   c.CORSAllowedHeaders,
			ExposedHeaders:   c.CORSExposedHeaders,
			AllowCredentials: false,
			MaxAge:           c.CORSMaxAge,
		}),
	}
}

// CORS returns the go-chi/cors handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit limits requests per client IP over the configured window.
// Rejections are answered with the error envelope and counted.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitHit(routeGroup(r))
			respondError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests", nil)
		}),
	)
}

// routeGroup is the partially matched chi pattern, e.g. "/api/v1/*".
func routeGroup(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
