// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultNATSImage is the broker image used by integration tests.
	DefaultNATSImage = "nats:2.10-alpine"
	natsClientPort   = "4222/tcp"
)

// NATSContainer is a disposable NATS broker.
type NATSContainer struct {
	testcontainers.Container
	URL string
}

// NewNATSContainer starts a broker and waits until it accepts clients.
func NewNATSContainer(ctx context.Context, image string) (*NATSContainer, error) {
	if image == "" {
		image = DefaultNATSImage
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{natsClientPort},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(natsClientPort),
				wait.ForLog("Server is ready"),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats container: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		c.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := c.MappedPort(ctx, natsClientPort)
	if err != nil {
		c.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &NATSContainer{
		Container: c,
		URL:       fmt.Sprintf("nats://%s:%s", host, port.Port()),
	}, nil
}
