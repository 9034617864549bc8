// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*SchedulerService)(nil)
	_ suture.Service = (*EmbeddedNATSService)(nil)
)

type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error

	listening chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	shutdowns atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{listening: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	f.listening <- struct{}{}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.stopOnce.Do(func() { close(f.stop) })
	return f.shutdownErr
}

func TestHTTPServerService_DefaultTimeout(t *testing.T) {
	t.Parallel()
	for _, d := range []time.Duration{0, -time.Second} {
		if svc := NewHTTPServerService(newFakeHTTPServer(), d); svc.shutdownTimeout != 10*time.Second {
			t.Errorf("timeout for %v = %v, want 10s", d, svc.shutdownTimeout)
		}
	}
}

func TestHTTPServerService_Serve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		listenErr   error
		shutdownErr error
		wantErr     error
	}{
		{name: "graceful shutdown", wantErr: context.Canceled},
		{name: "bind failure", listenErr: errors.New("address already in use")},
		{name: "shutdown failure", shutdownErr: errors.New("deadline"), wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := newFakeHTTPServer()
			server.listenErr = tt.listenErr
			server.shutdownErr = tt.shutdownErr
			svc := NewHTTPServerService(server, time.Second)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			if tt.listenErr == nil {
				select {
				case <-server.listening:
				case <-time.After(time.Second):
					t.Fatal("server never started listening")
				}
				cancel()
			}

			var err error
			select {
			case err = <-errCh:
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return")
			}

			switch {
			case tt.listenErr != nil:
				if !errors.Is(err, tt.listenErr) {
					t.Errorf("err = %v, want %v", err, tt.listenErr)
				}
			case tt.shutdownErr != nil:
				if !errors.Is(err, tt.shutdownErr) {
					t.Errorf("err = %v, want %v", err, tt.shutdownErr)
				}
			default:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				if n := server.shutdowns.Load(); n != 1 {
					t.Errorf("Shutdown called %d times, want 1", n)
				}
			}
		})
	}
}
