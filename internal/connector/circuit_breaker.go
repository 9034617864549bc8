// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package connector

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/metrics"
)

// Breaker settings. A feed that fails five requests in a row is left alone
// for a minute, then probed with a single request.
const (
	breakerConsecutiveFailures = 5
	breakerInterval            = 2 * time.Minute
	breakerOpenTimeout         = time.Minute
	breakerHalfOpenRequests    = 1
)

func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerHalfOpenRequests,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= breakerConsecutiveFailures
			if trip {
				logging.Warn().
					Str("breaker", name).
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
		// Permanent client errors say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || !isTransient(err)
		},
	})
}

// executeWithBreaker runs fn through cb and records the outcome.
func executeWithBreaker(cb *gobreaker.CircuitBreaker[[]byte], fn func() ([]byte, error)) ([]byte, error) {
	result, err := cb.Execute(fn)
	switch {
	case err == nil:
		metrics.RecordCircuitBreakerRequest(cb.Name(), "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(cb.Name(), "rejected")
		logging.Warn().Err(err).Str("breaker", cb.Name()).Msg("[CIRCUIT BREAKER] Request rejected")
	default:
		metrics.RecordCircuitBreakerRequest(cb.Name(), "failure")
	}
	return result, err
}
