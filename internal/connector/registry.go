// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package connector

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/models"
)

// Strategy is everything the orchestrator needs to ingest one dataset.
// Exactly one of Incidents and Boundaries is set, matching Kind.
type Strategy struct {
	Dataset    string
	Kind       models.DatasetKind
	SourceURL  string
	Fields     FieldMapping
	Incidents  Connector
	Boundaries BoundaryConnector
}

// Registry maps dataset identifiers to strategies. It is built once at
// startup and read-only afterwards.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds a strategy per configured dataset plus the boundary
// feed when a neighbourhoods URL is set. hc may be nil.
func NewRegistry(cfg *config.SourcesConfig, hc *http.Client) (*Registry, error) {
	r := &Registry{strategies: make(map[string]Strategy)}
	fields := FieldMappingFromConfig(cfg.Fields)

	for name, endpoint := range cfg.Datasets {
		err := r.Register(Strategy{
			Dataset:   name,
			Kind:      models.KindIncidents,
			SourceURL: endpoint,
			Fields:    fields,
			Incidents: &ArcGISIncidents{
				dataset:  name,
				client:   newClient(name, endpoint, cfg, hc),
				fields:   fields,
				pageSize: cfg.PageSize,
			},
		})
		if err != nil {
			return nil, err
		}
	}

	if nb := cfg.Neighbourhoods; nb.URL != "" {
		err := r.Register(Strategy{
			Dataset:   BoundaryDataset,
			Kind:      models.KindNeighbourhoods,
			SourceURL: nb.URL,
			Boundaries: &ArcGISBoundaries{
				client:   newClient(BoundaryDataset, nb.URL, cfg, hc),
				fields:   BoundaryFieldsFromConfig(nb),
				pageSize: cfg.PageSize,
			},
		})
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewEmptyRegistry returns a registry for callers that register their own
// strategies.
func NewEmptyRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy. Duplicate datasets and strategies whose
// connector does not match Kind are rejected.
func (r *Registry) Register(s Strategy) error {
	if s.Dataset == "" {
		return fmt.Errorf("strategy has no dataset")
	}
	if _, exists := r.strategies[s.Dataset]; exists {
		return fmt.Errorf("dataset %q registered twice", s.Dataset)
	}
	switch s.Kind {
	case models.KindIncidents:
		if s.Incidents == nil {
			return fmt.Errorf("dataset %q: incidents strategy without connector", s.Dataset)
		}
	case models.KindNeighbourhoods:
		if s.Boundaries == nil {
			return fmt.Errorf("dataset %q: boundary strategy without connector", s.Dataset)
		}
	default:
		return fmt.Errorf("dataset %q: unknown kind %q", s.Dataset, s.Kind)
	}
	r.strategies[s.Dataset] = s
	return nil
}

// Lookup returns the strategy for dataset.
func (r *Registry) Lookup(dataset string) (Strategy, bool) {
	s, ok := r.strategies[dataset]
	return s, ok
}

// Strategies returns incident strategies sorted by dataset, followed by the
// boundary strategy if any.
func (r *Registry) Strategies() []Strategy {
	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == models.KindIncidents
		}
		return out[i].Dataset < out[j].Dataset
	})
	return out
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	return len(r.strategies)
}
