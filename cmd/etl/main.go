// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

// Command safetyview-etl runs ingestion against the DuckDB store outside the
// API server: cron-driven runs, backfills, run history and migrations.
//
// DuckDB takes an exclusive lock on the database file, so stop the server
// (or disable its scheduler) before pointing the CLI at the same file.
//
// Exit codes for run: 0 succeeded, 2 degraded (some datasets failed),
// 1 failed, aborted or could not start.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/database"
	"github.com/tomtom215/safetyview/internal/logging"
)

var version = "dev"

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// app is the state shared by every subcommand.
type app struct {
	out        io.Writer
	jsonOutput bool
	configPath string

	// load is config.Load outside tests.
	load func() (*config.Config, error)

	cfg *config.Config
	db  *database.DB
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "safetyview-etl <command>",
		Short:         "Ingest public safety incident feeds into the SafetyView store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetOut(a.out)
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "output as JSON")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (overrides CONFIG_PATH)")

	root.AddGroup(
		&cobra.Group{ID: "ingest", Title: "Ingestion:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	root.AddCommand(newRunCmd(a), newStatusCmd(a), newMigrateCmd(a))
	return root
}

// open loads configuration, initializes logging and opens the store.
func (a *app) open() error {
	if a.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, a.configPath); err != nil {
			return err
		}
	}
	cfg, err := a.load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
		Service:   "safetyview-etl",
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	db.SetLoadRetries(cfg.ETL.LoadRetries)
	a.db = db
	return nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing database")
	}
	a.db = nil
}

func main() {
	a := &app{out: os.Stdout, load: config.Load}
	err := newRootCmd(a).Execute()
	// PersistentPostRun is skipped when RunE fails.
	a.close()
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		os.Exit(ee.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
