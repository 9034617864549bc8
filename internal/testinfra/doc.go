// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

// Package testinfra provides shared test fixtures.
//
// FeatureServer is an httptest-backed fake of an ArcGIS feature service
// layer and is available to every test.
//
// The container helpers are compiled only with the integration build tag
// and need Docker:
//
//	go test -tags integration ./internal/events/...
//
//	func TestBusOverNATS(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    broker, err := testinfra.NewNATSContainer(ctx, "")
//	    ...
//	    defer testinfra.CleanupContainer(t, ctx, broker)
//	    bus, err := events.New("", broker.URL)
//	}
package testinfra
