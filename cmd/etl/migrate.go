// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		Short:   "Apply pending schema migrations and report the schema version",
		GroupID: "system",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.db.Migrate(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			version, err := a.db.GetCurrentSchemaVersion(ctx)
			if err != nil {
				return err
			}
			pending, err := a.db.PendingMigrations(ctx)
			if err != nil {
				return err
			}
			deferred := make([]string, 0, len(pending))
			for _, m := range pending {
				deferred = append(deferred, fmt.Sprintf("%03d_%s", m.Version, m.Name))
			}
			return a.printMigrate(version, deferred, a.db.IsSpatialAvailable())
		},
	}
}
