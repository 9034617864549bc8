// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/connector"
	"github.com/tomtom215/safetyview/internal/events"
	"github.com/tomtom215/safetyview/internal/ingest"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/models"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		backfill bool
		datasets []string
	)
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run one ingestion pass over the configured datasets",
		GroupID: "ingest",
		Long: `Fetches each dataset's incremental window (or the whole history with
--backfill), loads it idempotently and refreshes aggregates. When
EVENTS_ENABLED=true a run that commits anything is announced on the event
bus so a running API server drops its caches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, ingest.RunOptions{
				Trigger:  models.TriggerCLI,
				Backfill: backfill,
				Datasets: datasets,
			})
		},
	}
	cmd.Flags().BoolVar(&backfill, "backfill", false, "ignore watermarks and load from ETL_BACKFILL_START")
	cmd.Flags().StringSliceVar(&datasets, "dataset", nil, "restrict the run to these datasets (repeatable)")
	return cmd
}

func (a *app) run(ctx context.Context, opts ingest.RunOptions) error {
	if err := a.cfg.ValidateForIngestion(); err != nil {
		return err
	}
	registry, err := connector.NewRegistry(&a.cfg.Sources, nil)
	if err != nil {
		return fmt.Errorf("failed to build connector registry: %w", err)
	}

	var publisher ingest.Publisher
	if url := natsURL(&a.cfg.Events); url != "" {
		bus, err := events.New(a.cfg.Events.Topic, url)
		if err != nil {
			// Caches then expire by TTL instead.
			logging.Warn().Err(err).Msg("Event bus unavailable, run completion will not be announced")
		} else {
			defer func() { _ = bus.Close() }()
			publisher = bus
		}
	}

	run, err := ingest.NewOrchestrator(a.db, registry, a.cfg.ETL, publisher).Run(ctx, opts)
	if run != nil {
		if perr := a.printRun(run); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	return runExit(run.Status)
}

// natsURL is where a separate process reaches the server's bus: NATS_URL,
// or the API server's embedded NATS server on this host. An in-process bus
// cannot be reached, so it yields "".
func natsURL(cfg *config.EventsConfig) string {
	switch {
	case !cfg.Enabled:
		return ""
	case cfg.NATSURL != "":
		return cfg.NATSURL
	case cfg.EmbeddedServer:
		return fmt.Sprintf("nats://127.0.0.1:%d", cfg.EmbeddedPort)
	default:
		return ""
	}
}

// runExit maps a finished run's status to the process exit code.
func runExit(status models.RunStatus) error {
	switch status {
	case models.RunSucceeded:
		return nil
	case models.RunDegraded:
		return &exitError{code: 2, msg: "ingestion run degraded: some datasets failed"}
	default:
		return &exitError{code: 1, msg: fmt.Sprintf("ingestion run %s", status)}
	}
}
