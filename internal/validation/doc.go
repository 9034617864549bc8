// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package validation checks HTTP query parameters with go-playground/validator.

A single validator instance is shared by every handler; it caches struct
metadata and carries three custom rules:

  - bbox: "west,south,east,north" within WGS84 bounds, west <= east, south <= north
  - apidate: RFC3339 or YYYY-MM-DD (interpreted as UTC midnight)
  - dataset: identifier of letters, digits, '_' or '-', at most 64 characters

Field names in messages come from the struct's `query` tag, so a failure on

	type incidentsRequest struct {
	    Limit int    `query:"limit" validate:"min=0,max=5000"`
	    BBox  string `query:"bbox" validate:"omitempty,bbox"`
	}

reads "limit must be at most 5000" rather than naming the Go field.

ValidateStruct returns a *RequestValidationError whose ToAPIError produces
the VALIDATION_ERROR body used by the API envelope. The error also unwraps
to a *models.ValidationError, so errors.As classification in the HTTP layer
treats request and domain validation failures alike.
*/
package validation
