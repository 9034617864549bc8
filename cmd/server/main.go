// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/safetyview/internal/api"
	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/connector"
	"github.com/tomtom215/safetyview/internal/database"
	"github.com/tomtom215/safetyview/internal/events"
	"github.com/tomtom215/safetyview/internal/ingest"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/supervisor"
	"github.com/tomtom215/safetyview/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const readHeaderTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(loggingConfig(cfg))

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Strs("datasets", cfg.DatasetNames()).
		Dur("schedule", cfg.ETL.Schedule).
		Msg("Starting SafetyView API server")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	db.SetLoadRetries(cfg.ETL.LoadRetries)
	if !db.IsSpatialAvailable() {
		logging.Warn().Msg("DuckDB spatial extension unavailable, neighbourhood geometry served from stored GeoJSON")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	ev, err := initEvents(&cfg.Events)
	if err != nil {
		return err
	}
	defer ev.Close()
	if ev.server != nil {
		tree.AddEventService(services.NewEmbeddedNATSService(ev.server, cfg.Server.ShutdownTimeout))
	}

	handler := api.NewHandler(db, cfg, version)
	defer handler.Close()
	tree.AddEventService(events.NewListener(ev.bus, handler.OnRunCompleted))

	if scheduled(&cfg.ETL) {
		scheduler, err := initScheduler(cfg, db, ev.bus)
		if err != nil {
			return err
		}
		tree.AddIngestService(services.NewSchedulerService(scheduler))
	} else {
		logging.Info().Msg("Ingestion scheduler disabled (ETL_SCHEDULE=0), use safetyview-etl to load data")
	}

	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(cfg.Server)))
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))

	watchConfig(config.ConfigFilePath())

	logging.Info().Str("addr", srv.Addr).Str("events", ev.bus.Transport()).Msg("Serving")
	err = tree.Serve(ctx)

	if unstopped, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(unstopped) > 0 {
		for _, u := range unstopped {
			logging.Warn().Str("service", u.Name).Msg("Service did not stop within timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree stopped: %w", err)
	}
	logging.Info().Msg("Server stopped")
	return nil
}

func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
		Service:   "safetyview-api",
	}
}

func scheduled(etl *config.ETLConfig) bool {
	return etl.Schedule > 0 || etl.RunOnStartup
}

// initScheduler wires connectors, orchestrator and scheduler. Runs publish
// completion events on bus.
func initScheduler(cfg *config.Config, db *database.DB, bus *events.Bus) (*ingest.Scheduler, error) {
	if err := cfg.ValidateForIngestion(); err != nil {
		return nil, fmt.Errorf("scheduled ingestion misconfigured: %w", err)
	}
	registry, err := connector.NewRegistry(&cfg.Sources, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build connector registry: %w", err)
	}
	orchestrator := ingest.NewOrchestrator(db, registry, cfg.ETL, bus)
	return ingest.NewScheduler(orchestrator, db, cfg.ETL.Schedule, cfg.ETL.RunOnStartup), nil
}
