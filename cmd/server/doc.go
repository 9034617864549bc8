// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

// Package main is the SafetyView API server.
//
// The server exposes the read-only incident map and analytics API and,
// when ETL_SCHEDULE is set, runs ingestion on that interval in-process.
// DuckDB allows a single writing process, so the server-resident scheduler
// is the normal way to keep the store fresh; the safetyview-etl CLI is for
// backfills and one-off runs while the server is stopped.
//
// # Startup
//
//  1. Configuration: defaults, optional config.yaml, .env, environment (koanf)
//  2. Logging: zerolog, JSON by default
//  3. Store: DuckDB with migrations, spatial extension when available
//  4. Events: watermill bus, in-process or NATS, optional embedded NATS server
//  5. API handler and chi router
//  6. Ingestion orchestrator and scheduler (when scheduled)
//  7. Supervisor tree: ingest, events and api layers
//
// # Events
//
// Every committed run publishes ingest.run.completed. The API listens for it
// and drops cached responses, so results never lag a commit by more than
// the delivery latency. With EVENTS_ENABLED=false the bus is in-process and
// only sees runs made by this server.
//
// # Signals
//
// SIGINT and SIGTERM cancel the tree. An in-flight run is aborted and
// recorded as aborted, and the HTTP server drains within
// SERVER_SHUTDOWN_TIMEOUT.
//
// # Configuration reload
//
// When a config file is in use, edits to it are picked up for logging
// settings. Everything else needs a restart.
package main
