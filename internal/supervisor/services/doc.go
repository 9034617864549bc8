// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

// Package services adapts the server's long-lived components to
// suture.Service so the supervisor tree can restart them.
//
//   - HTTPServerService: graceful ListenAndServe/Shutdown
//   - SchedulerService: ingestion scheduler Start/Stop
//   - EmbeddedNATSService: health watch and shutdown of the in-process NATS server
//
// The event listener implements suture.Service itself (events.Listener).
package services
