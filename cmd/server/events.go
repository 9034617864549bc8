// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/events"
	"github.com/tomtom215/safetyview/internal/logging"
)

// embeddedNATSHost keeps the embedded server off external interfaces.
const embeddedNATSHost = "127.0.0.1"

// eventComponents is the bus plus the embedded server behind it, if any.
type eventComponents struct {
	bus    *events.Bus
	server *events.EmbeddedServer
}

// initEvents picks the transport:
//   - disabled: in-process gochannel, sees only this process's runs
//   - embedded: start a local NATS server and connect to it
//   - NATS_URL: connect to an external server
func initEvents(cfg *config.EventsConfig) (*eventComponents, error) {
	if !cfg.Enabled {
		bus, err := events.New(cfg.Topic, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		return &eventComponents{bus: bus}, nil
	}

	ec := &eventComponents{}
	url := cfg.NATSURL
	if cfg.EmbeddedServer {
		srv, err := events.NewEmbeddedServer(embeddedNATSHost, cfg.EmbeddedPort)
		if err != nil {
			return nil, fmt.Errorf("failed to start embedded NATS server: %w", err)
		}
		ec.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	bus, err := events.New(cfg.Topic, url)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("failed to connect event bus: %w", err)
	}
	ec.bus = bus
	return ec, nil
}

// Close releases the bus, then the server it was connected to.
func (ec *eventComponents) Close() {
	if ec.bus != nil {
		if err := ec.bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing event bus")
		}
	}
	if ec.server != nil && ec.server.IsRunning() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ec.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Error stopping embedded NATS server")
		}
	}
}
