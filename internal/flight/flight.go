// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

// Package flight keeps at most one in-flight request per logical query key.
//
// Unlike x/sync/singleflight, which shares the first caller's result, a
// newer request for a key cancels the older one: a map client panning the
// viewport only cares about the latest bounding box.
//
//	ctx, done := group.Begin(r.Context(), key)
//	defer done()
//	rows, err := db.QueryIncidents(ctx, q)
//	if flight.Superseded(ctx) {
//	    // a newer request replaced this one
//	}
package flight

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is the cancellation cause for replaced requests.
var ErrSuperseded = errors.New("superseded by a newer request")

type call struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// Group tracks the current request per key. The zero value is ready to use.
type Group struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[string]call
}

// Begin registers a request for key and cancels the previous one, if any,
// with ErrSuperseded. The returned done func must be called when the
// request finishes. An empty key is not tracked.
func (g *Group) Begin(ctx context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	if key == "" {
		return ctx, func() { cancel(nil) }
	}

	g.mu.Lock()
	if g.inflight == nil {
		g.inflight = make(map[string]call)
	}
	if prev, ok := g.inflight[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	g.seq++
	id := g.seq
	g.inflight[key] = call{id: id, cancel: cancel}
	g.mu.Unlock()

	return ctx, func() {
		g.mu.Lock()
		// A newer request may already own the key.
		if cur, ok := g.inflight[key]; ok && cur.id == id {
			delete(g.inflight, key)
		}
		g.mu.Unlock()
		cancel(nil)
	}
}

// InFlight returns the number of tracked keys.
func (g *Group) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

// Superseded reports whether ctx was cancelled by a newer request.
func Superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}
