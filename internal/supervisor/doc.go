// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package supervisor runs the API server's long-lived services under a suture v4
supervisor tree.

Services are grouped into layers so a failure in one is restarted in
isolation:

	safetyview
	├── ingest-layer   services.SchedulerService
	├── events-layer   services.EmbeddedNATSService, events.Listener
	└── api-layer      services.HTTPServerService

Supervisor events are logged through sutureslog. Cancelling the context
passed to Serve stops every service, each bounded by ShutdownTimeout.

Usage:

	tree := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())
	tree.AddIngestService(services.NewSchedulerService(scheduler))
	tree.AddEventService(events.NewListener(bus, handler.OnRunCompleted))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err := tree.Serve(ctx)
*/
package supervisor
