// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package events

import (
	"context"
	"errors"

	"github.com/thejerf/suture/v4"
)

// Listener runs a subscription as a supervised service.
type Listener struct {
	bus     *Bus
	handler Handler
}

// NewListener creates a listener delivering bus events to h.
func NewListener(bus *Bus, h Handler) *Listener {
	return &Listener{bus: bus, handler: h}
}

// Serve implements suture.Service. A closed bus stops the service for good;
// other subscription errors let the supervisor restart it.
func (l *Listener) Serve(ctx context.Context) error {
	err := l.bus.Subscribe(ctx, l.handler)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, ErrBusClosed) {
		return suture.ErrDoNotRestart
	}
	return err
}

func (l *Listener) String() string {
	return "event-listener"
}
