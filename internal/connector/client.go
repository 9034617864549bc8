// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/metrics"
)

const (
	// maxErrorBodySize bounds how much of an error response is kept.
	maxErrorBodySize = 64 * 1024
	// maxResponseSize bounds a single page; polygon layers are the largest.
	maxResponseSize = 256 << 20
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.StatusCode, e.Body)
}

// ServiceError is an ArcGIS error object delivered with HTTP 200.
type ServiceError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("feature service error %d: %s", e.Code, e.Message)
}

// isTransient reports whether a failed request may succeed when repeated.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return transientStatus(se.StatusCode)
	}
	var ae *ServiceError
	if errors.As(err, &ae) {
		return transientStatus(ae.Code)
	}
	// Transport failures and per-request timeouts.
	return true
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(bytes.TrimSpace(body))
}

type requestStats struct {
	attempts int
}

// client issues GET requests against one feature service endpoint.
type client struct {
	name       string
	endpoint   string
	http       *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	maxRetries int
	backoff    time.Duration
	userAgent  string
}

func newClient(name, endpoint string, cfg *config.SourcesConfig, hc *http.Client) *client {
	if hc == nil {
		hc = &http.Client{}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &client{
		name:       name,
		endpoint:   endpoint,
		http:       hc,
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    newBreaker("source-" + name),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		userAgent:  cfg.UserAgent,
	}
}

// get fetches one page, retrying transient failures with exponential
// backoff. The breaker rejects immediately while open.
func (c *client) get(ctx context.Context, params url.Values) ([]byte, requestStats, error) {
	var stats requestStats
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, stats, err
		}
		stats.attempts++

		start := time.Now()
		var retryAfter time.Duration
		body, err := executeWithBreaker(c.breaker, func() ([]byte, error) {
			b, ra, err := c.do(ctx, params)
			retryAfter = ra
			return b, err
		})
		metrics.RecordConnectorRequest(c.name, requestOutcome(err), time.Since(start))
		if err == nil {
			return body, stats, nil
		}

		if !isTransient(err) || errors.Is(err, gobreaker.ErrOpenState) || attempt > c.maxRetries {
			return nil, stats, err
		}

		delay := c.backoff * time.Duration(1<<uint(attempt-1))
		if retryAfter > delay {
			delay = retryAfter
		}
		metrics.RecordConnectorRetry(c.name)
		logging.Warn().
			Err(err).
			Str("dataset", c.name).
			Int("attempt", attempt).
			Int("max_retries", c.maxRetries).
			Dur("delay", delay).
			Msg("Upstream request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, stats, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *client) do(ctx context.Context, params url.Values) ([]byte, time.Duration, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reqURL := c.endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &StatusError{
			StatusCode: resp.StatusCode,
			Body:       readBodyForError(resp.Body),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	// ArcGIS reports many failures as 200 with an error object.
	var envelope struct {
		Error *ServiceError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Error != nil {
		return nil, 0, envelope.Error
	}
	return body, 0, nil
}

// parseRetryAfter accepts the delta-seconds form only.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func requestOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case isTransient(err):
		return "transient_error"
	default:
		return "permanent_error"
	}
}
