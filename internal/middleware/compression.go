// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// compressionLevel trades a little CPU for much smaller GeoJSON bodies.
const compressionLevel = 5

// compressibleTypes lists the response types worth compressing.
var compressibleTypes = []string{
	"application/json",
	"application/geo+json",
	"text/plain",
}

// Compression gzips/deflates JSON and GeoJSON responses for clients that
// accept it.
func Compression() func(http.Handler) http.Handler {
	return chimiddleware.Compress(compressionLevel, compressibleTypes...)
}
