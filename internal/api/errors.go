// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/safetyview/internal/flight"
	"github.com/tomtom215/safetyview/internal/models"
)

// Error codes carried in the envelope's error.code.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeDatabase         = "DATABASE_ERROR"
	ErrCodeSuperseded       = "SUPERSEDED"
	ErrCodeTimeout          = "QUERY_TIMEOUT"
	ErrCodeCancelled        = "REQUEST_CANCELLED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeServiceUnavail   = "SERVICE_UNAVAILABLE"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// statusClientClosedRequest is reported when the client went away first.
const statusClientClosedRequest = 499

// classifiedError is an error resolved to its HTTP representation.
type classifiedError struct {
	status  int
	code    string
	message string
	// logged marks failures worth an error log line.
	logged bool
}

// classifyError maps a handler error to status, code and client message.
// ctx is the query context; it tells a superseded query from a plain
// cancellation.
func classifyError(ctx context.Context, err error) classifiedError {
	var ve *models.ValidationError
	switch {
	case flight.Superseded(ctx):
		return classifiedError{status: http.StatusConflict, code: ErrCodeSuperseded, message: "Query superseded by a newer request"}
	case errors.As(err, &ve):
		return classifiedError{status: http.StatusBadRequest, code: ErrCodeValidation, message: ve.Message}
	case errors.Is(err, models.ErrNotFound):
		return classifiedError{status: http.StatusNotFound, code: ErrCodeNotFound, message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return classifiedError{status: http.StatusGatewayTimeout, code: ErrCodeTimeout, message: "Query timed out", logged: true}
	case errors.Is(err, context.Canceled):
		return classifiedError{status: statusClientClosedRequest, code: ErrCodeCancelled, message: "Request cancelled"}
	default:
		return classifiedError{status: http.StatusInternalServerError, code: ErrCodeDatabase, message: "A database error occurred", logged: true}
	}
}
