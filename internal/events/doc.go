// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package events carries ingestion notifications between processes.

The only event is RunCompleted, published after an ingestion run commits at
least one dataset. API processes subscribe to it and drop cached responses
(and cached neighbourhood polygons when boundaries were reloaded), so a cron
ETL process and a long-running API server stay consistent without sharing
memory.

Transports, chosen by configuration:

  - NATS core pub/sub through watermill-nats (EVENTS_NATS_URL set, or the
    embedded server enabled). Every subscriber receives every event.
  - In-process watermill gochannel when no NATS URL is configured. This is
    enough for the server-resident scheduler.

Delivery is at-most-once. A missed event only delays cache expiry until the
response cache TTL, so no JetStream persistence is used.

Publishing goes through a gobreaker circuit breaker so an unreachable broker
does not slow down the end of every ingestion run.
*/
package events
