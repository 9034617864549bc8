// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/database"
	"github.com/tomtom215/safetyview/internal/models"
	"github.com/tomtom215/safetyview/internal/testinfra"
)

func TestMain(m *testing.M) {
	if os.Getenv(database.SpatialOptionalEnvVar) == "" {
		_ = os.Setenv(database.SpatialOptionalEnvVar, "true")
	}
	os.Exit(m.Run())
}

func testConfig(t *testing.T, fs *testinfra.FeatureServer, layers ...string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "etl.duckdb")
	cfg.Database.MaxMemory = "512MB"
	cfg.Sources.Datasets = make(map[string]string, len(layers))
	for _, l := range layers {
		cfg.Sources.Datasets[l] = fs.LayerURL(l)
	}
	cfg.Sources.Neighbourhoods.URL = fs.LayerURL(testinfra.NeighbourhoodsLayer)
	cfg.Sources.RateLimit = 0
	cfg.Sources.MaxRetries = 0
	cfg.Sources.RetryBackoff = time.Millisecond
	cfg.ETL.FetchAttempts = 1
	cfg.Events.Enabled = false
	cfg.Logging.Level = "error"
	return cfg
}

// execute runs one CLI invocation against cfg and returns its stdout.
func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{out: &out, load: func() (*config.Config, error) { return cfg, nil }}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	a.close()
	return out.String(), err
}

func decodeRun(t *testing.T, out string) models.IngestionRun {
	t.Helper()
	var run models.IngestionRun
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("decode run: %v\n%s", err, out)
	}
	return run
}

func TestRunThenStatus(t *testing.T) {
	fs := testinfra.NewFeatureServer(t)
	now := time.Now().UTC().Add(-time.Hour)
	fs.AddIncidents("robbery",
		testinfra.IncidentRow("GO-1", now, "Robbery", "001", -79.40, 43.70),
		testinfra.IncidentRow("GO-2", now, "Robbery", "001", -79.41, 43.71),
		testinfra.IncidentRow("GO-1", now, "Robbery", "001", -79.40, 43.70),
	)
	fs.AddNeighbourhoods(testinfra.SquareNeighbourhood("001", "Downtown", -79.5, 43.6, 0.2))
	cfg := testConfig(t, fs, "robbery")

	for i := 0; i < 2; i++ {
		out, err := execute(t, cfg, "run", "--json")
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		run := decodeRun(t, out)
		if run.Status != models.RunSucceeded || run.Trigger != models.TriggerCLI {
			t.Fatalf("run %d: status=%s trigger=%s", i, run.Status, run.Trigger)
		}
		if len(run.Datasets) != 2 {
			t.Fatalf("run %d: %d datasets, want robbery and neighbourhoods", i, len(run.Datasets))
		}
	}

	out, err := execute(t, cfg, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status struct {
		LastSuccessfulRunAt *time.Time            `json:"last_successful_run_at"`
		Runs                []models.IngestionRun `json:"runs"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if status.LastSuccessfulRunAt == nil {
		t.Error("last_successful_run_at is null after two successful runs")
	}
	if len(status.Runs) != 2 {
		t.Errorf("status lists %d runs, want 2", len(status.Runs))
	}

	text, err := execute(t, cfg, "status")
	if err != nil {
		t.Fatalf("status text: %v", err)
	}
	if !strings.Contains(text, "robbery") || !strings.Contains(text, string(models.StateCommitted)) {
		t.Errorf("status text missing dataset rows:\n%s", text)
	}
}

func TestRun_PartialFailureIsDegraded(t *testing.T) {
	fs := testinfra.NewFeatureServer(t)
	now := time.Now().UTC().Add(-time.Hour)
	fs.AddIncidents("assault", testinfra.IncidentRow("GO-9", now, "Assault", "002", -79.40, 43.70))
	fs.AddNeighbourhoods(testinfra.SquareNeighbourhood("002", "Midtown", -79.5, 43.6, 0.2))
	fs.FailNext("theft", 10)
	cfg := testConfig(t, fs, "assault", "theft")

	out, err := execute(t, cfg, "run", "--json")
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 2 {
		t.Fatalf("err = %v, want exit code 2", err)
	}
	run := decodeRun(t, out)
	if run.Status != models.RunDegraded {
		t.Errorf("status = %s, want degraded", run.Status)
	}
	for _, d := range run.Datasets {
		wantState := models.StateCommitted
		if d.Dataset == "theft" {
			wantState = models.StateFailed
		}
		if d.State != wantState {
			t.Errorf("%s state = %s, want %s", d.Dataset, d.State, wantState)
		}
	}
}

func TestRun_UnknownDataset(t *testing.T) {
	fs := testinfra.NewFeatureServer(t)
	cfg := testConfig(t, fs, "robbery")

	_, err := execute(t, cfg, "run", "--dataset", "nope")
	if !models.IsValidationError(err) {
		t.Fatalf("err = %v, want a validation error", err)
	}
	if fs.Requests("robbery") != 0 {
		t.Error("upstream queried for a rejected run")
	}
}

func TestMigrate(t *testing.T) {
	fs := testinfra.NewFeatureServer(t)
	cfg := testConfig(t, fs)

	out, err := execute(t, cfg, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.HasPrefix(out, "Schema version: ") {
		t.Errorf("output = %q", out)
	}
}

func TestRunExit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status models.RunStatus
		code   int
	}{
		{models.RunSucceeded, 0},
		{models.RunDegraded, 2},
		{models.RunFailed, 1},
		{models.RunAborted, 1},
	}
	for _, tt := range tests {
		err := runExit(tt.status)
		var ee *exitError
		switch {
		case tt.code == 0 && err != nil:
			t.Errorf("%s: err = %v, want nil", tt.status, err)
		case tt.code != 0 && (!errors.As(err, &ee) || ee.code != tt.code):
			t.Errorf("%s: err = %v, want exit code %d", tt.status, err, tt.code)
		}
	}
}

func TestNATSURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.EventsConfig
		want string
	}{
		{name: "disabled", cfg: config.EventsConfig{NATSURL: "nats://x:4222"}, want: ""},
		{name: "in-process only", cfg: config.EventsConfig{Enabled: true}, want: ""},
		{name: "external", cfg: config.EventsConfig{Enabled: true, NATSURL: "nats://x:4222"}, want: "nats://x:4222"},
		{name: "server embedded", cfg: config.EventsConfig{Enabled: true, EmbeddedServer: true, EmbeddedPort: 4333}, want: "nats://127.0.0.1:4333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := natsURL(&tt.cfg); got != tt.want {
				t.Errorf("natsURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
