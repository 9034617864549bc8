// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/models"
)

func (a *app) printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func (a *app) printRun(run *models.IngestionRun) error {
	if a.jsonOutput {
		return a.printJSON(run)
	}

	dur := "-"
	if run.CompletedAt != nil {
		dur = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
	}
	fmt.Fprintf(a.out, "Run %s: %s (%s, backfill=%t, %s)\n", run.ID, run.Status, run.Trigger, run.Backfill, dur)
	writeDatasets(a, run.Datasets)
	return nil
}

func (a *app) printStatus(runs []models.IngestionRun, last *time.Time) error {
	if a.jsonOutput {
		return a.printJSON(map[string]interface{}{
			"last_successful_run_at": last,
			"runs":                   runs,
		})
	}

	if last != nil {
		fmt.Fprintf(a.out, "Last successful run: %s\n", last.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(a.out, "Last successful run: never")
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No ingestion runs recorded.")
		return nil
	}
	for i := range runs {
		r := &runs[i]
		fmt.Fprintf(a.out, "\n%s  %-9s %-8s %s\n", r.StartedAt.UTC().Format(time.RFC3339), r.Status, r.Trigger, r.ID)
		writeDatasets(a, r.Datasets)
	}
	return nil
}

func (a *app) printMigrate(version int, deferred []string, spatial bool) error {
	if a.jsonOutput {
		return a.printJSON(map[string]interface{}{
			"schema_version":    version,
			"deferred":          deferred,
			"spatial_available": spatial,
		})
	}
	fmt.Fprintf(a.out, "Schema version: %d\n", version)
	if len(deferred) > 0 {
		fmt.Fprintf(a.out, "Deferred until the spatial extension loads: %s\n", strings.Join(deferred, ", "))
	}
	return nil
}

func writeDatasets(a *app, datasets []models.DatasetRun) {
	tw := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  DATASET\tSTATE\tFETCHED\tLOADED\tSKIPPED\tWINDOW\tERROR")
	for i := range datasets {
		d := &datasets[i]
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			d.Dataset, d.State, d.RowsFetched, d.RowsLoaded, d.RowsSkipped, window(d), d.Error)
	}
	_ = tw.Flush()
}

func window(d *models.DatasetRun) string {
	if d.WindowStart == nil || d.WindowEnd == nil {
		return "all"
	}
	return d.WindowStart.UTC().Format("2006-01-02") + ".." + d.WindowEnd.UTC().Format("2006-01-02")
}
