// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package cache provides the in-memory caches used by the API.

# Types

  - LRU: bounded generic LRU with optional TTL and AddIfAbsent. The
    neighbourhood comparator resolves polygons through one so repeated
    comparisons skip the store.
  - Cache: TTL map for analytics and stats responses, keyed with
    GenerateKey and cleared whenever an ingestion run commits.

Both record hits, misses and evictions in the cache_* Prometheus metrics
under the name given at construction.

# Example

	hoods := cache.NewLRU[string, models.NeighbourhoodPolygon]("neighbourhoods", 256, time.Hour)
	if n, ok := hoods.Get(code); ok {
	    return n, nil
	}
	n, err := db.GetNeighbourhood(ctx, code)
	if err != nil {
	    return models.NeighbourhoodPolygon{}, err
	}
	n, _ = hoods.AddIfAbsent(code, *n)
*/
package cache
