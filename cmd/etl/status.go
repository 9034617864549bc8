// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package main

import (
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show recent ingestion runs and per-dataset outcomes",
		GroupID: "ingest",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := a.db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			last, err := a.db.LastSuccessfulRunAt(cmd.Context())
			if err != nil {
				return err
			}
			return a.printStatus(runs, last)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}
