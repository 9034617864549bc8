// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package connector

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/models"
)

// BoundaryFieldsFromConfig copies the configured property names.
func BoundaryFieldsFromConfig(cfg config.NeighbourhoodSourceConfig) BoundaryFields {
	return BoundaryFields{
		AreaCode:  cfg.AreaCode,
		ShortCode: cfg.ShortCode,
		Name:      cfg.Name,
	}
}

// TransformBoundary validates one GeoJSON feature. Property keys match
// case-insensitively. Geometry must be a closed Polygon or MultiPolygon.
func TransformBoundary(f BoundaryFields, props map[string]json.RawMessage, geom *models.GeoJSONGeometry) (models.NeighbourhoodPolygon, models.SkipReason) {
	a := attributes(props)

	code := a.str(f.AreaCode)
	if code == "" {
		return models.NeighbourhoodPolygon{}, models.SkipMissingKey
	}
	if geom == nil || geom.Type == "" {
		return models.NeighbourhoodPolygon{}, models.SkipInvalidGeometry
	}
	bounds, err := models.PolygonBounds(*geom)
	if err != nil {
		return models.NeighbourhoodPolygon{}, models.SkipInvalidGeometry
	}

	return models.NeighbourhoodPolygon{
		AreaCode:  code,
		ShortCode: a.str(f.ShortCode),
		Name:      a.str(f.Name),
		Geometry:  *geom,
		Bounds:    bounds,
	}, ""
}
