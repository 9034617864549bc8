// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package connector

import (
	"context"
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/safetyview/internal/models"
)

type stubConnector struct{}

func (stubConnector) FetchIncidents(context.Context, *models.Window, IncidentPageFunc) (FetchStats, error) {
	return FetchStats{}, nil
}

func TestRegistryStrategies(t *testing.T) {
	t.Parallel()

	cfg := testSources(10)
	cfg.Datasets = map[string]string{
		"shootings": "https://example.com/arcgis/rest/services/Shootings/FeatureServer/0/query",
		"mci":       "https://example.com/arcgis/rest/services/MCI/FeatureServer/0/query",
	}
	cfg.Neighbourhoods.URL = "https://example.com/arcgis/rest/services/Hoods/FeatureServer/0/query"

	reg, err := NewRegistry(cfg, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	got := reg.Strategies()
	want := []string{"mci", "shootings", BoundaryDataset}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, ds := range want {
		if got[i].Dataset != ds {
			t.Errorf("Strategies()[%d] = %s, want %s", i, got[i].Dataset, ds)
		}
	}
	if got[2].Kind != models.KindNeighbourhoods || got[2].Boundaries == nil {
		t.Errorf("boundary strategy = %+v", got[2])
	}
	if _, ok := reg.Lookup("nope"); ok {
		t.Error("Lookup(nope) found a strategy")
	}
}

func TestRegistryRegisterRejectsInvalid(t *testing.T) {
	t.Parallel()

	reg := NewEmptyRegistry()
	if err := reg.Register(Strategy{Dataset: "a", Kind: models.KindIncidents, Incidents: stubConnector{}}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name string
		s    Strategy
	}{
		{"duplicate", Strategy{Dataset: "a", Kind: models.KindIncidents, Incidents: stubConnector{}}},
		{"no dataset", Strategy{Kind: models.KindIncidents, Incidents: stubConnector{}}},
		{"missing connector", Strategy{Dataset: "b", Kind: models.KindIncidents}},
		{"missing boundary connector", Strategy{Dataset: "c", Kind: models.KindNeighbourhoods}},
		{"unknown kind", Strategy{Dataset: "d", Kind: "weather", Incidents: stubConnector{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := reg.Register(tt.s); err == nil {
				t.Error("Register() error = nil")
			}
		})
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &StatusError{StatusCode: 429}, true},
		{"503", &StatusError{StatusCode: 503}, true},
		{"404", &StatusError{StatusCode: 404}, false},
		{"service 500", &ServiceError{Code: 500}, true},
		{"service 400", &ServiceError{Code: 400}, false},
		{"breaker open", gobreaker.ErrOpenState, true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"transport", errors.New("connection reset by peer"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	if got := parseRetryAfter("3"); got.Seconds() != 3 {
		t.Errorf("parseRetryAfter(3) = %v", got)
	}
	for _, v := range []string{"", "-1", "Wed, 21 Oct 2015 07:28:00 GMT"} {
		if got := parseRetryAfter(v); got != 0 {
			t.Errorf("parseRetryAfter(%q) = %v, want 0", v, got)
		}
	}
}
