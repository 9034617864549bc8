// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNATSServerStopped is returned when the embedded server stops on its own.
var ErrNATSServerStopped = errors.New("embedded NATS server stopped")

// natsHealthInterval is how often a running server is checked.
const natsHealthInterval = 5 * time.Second

// NATSServer is the lifecycle of *events.EmbeddedServer.
type NATSServer interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedNATSService owns an already started embedded NATS server. It
// reports a failure if the server stops underneath it and shuts the server
// down when the supervisor stops.
type EmbeddedNATSService struct {
	server          NATSServer
	shutdownTimeout time.Duration
	healthInterval  time.Duration
}

// NewEmbeddedNATSService wraps server. A non-positive timeout means 10s.
func NewEmbeddedNATSService(server NATSServer, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedNATSService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		healthInterval:  natsHealthInterval,
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	if !s.server.IsRunning() {
		return ErrNATSServerStopped
	}

	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !s.server.IsRunning() {
				return ErrNATSServerStopped
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("NATS server shutdown failed: %w", err)
			}
			return ctx.Err()
		}
	}
}

func (s *EmbeddedNATSService) String() string {
	return "nats-server"
}
