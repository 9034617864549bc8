// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/safetyview/internal/logging"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	t.Parallel()

	var captured, correlation string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = logging.RequestIDFromContext(r.Context())
		correlation = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	responseID := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(responseID); err != nil {
		t.Errorf("X-Request-ID %q is not a UUID: %v", responseID, err)
	}
	if captured != responseID {
		t.Errorf("context ID %q != header ID %q", captured, responseID)
	}
	if correlation == "" {
		t.Error("expected a correlation ID in context")
	}
}

func TestRequestID_UpstreamID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "printable id kept", header: "proxy-abc-123", keep: true},
		{name: "too long replaced", header: strings.Repeat("a", maxRequestIDLen+1)},
		{name: "control chars replaced", header: "abc\ndef"},
		{name: "space replaced", header: "abc def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = logging.RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(RequestIDHeader, tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := captured == tt.header; got != tt.keep {
				t.Errorf("kept upstream id = %v, want %v (got %q)", got, tt.keep, captured)
			}
			if rec.Header().Get(RequestIDHeader) != captured {
				t.Error("response header and context disagree")
			}
		})
	}
}
