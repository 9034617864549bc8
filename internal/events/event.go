// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/safetyview/internal/models"
)

// DefaultTopic is the subject RunCompleted events are published on.
const DefaultTopic = "ingest.run.completed"

// RunCompleted announces a finished ingestion run with at least one commit.
type RunCompleted struct {
	EventID     string           `json:"event_id"`
	RunID       string           `json:"run_id"`
	Status      models.RunStatus `json:"status"`
	Trigger     string           `json:"trigger"`
	CompletedAt time.Time        `json:"completed_at"`
	// Committed lists the datasets whose rows changed.
	Committed []string `json:"committed"`
	// BoundariesChanged is true when neighbourhood polygons were reloaded.
	BoundariesChanged bool `json:"boundaries_changed"`
}

// NewRunCompleted builds the event for run.
func NewRunCompleted(run *models.IngestionRun) RunCompleted {
	ev := RunCompleted{
		EventID: uuid.NewString(),
		RunID:   run.ID,
		Status:  run.Status,
		Trigger: string(run.Trigger),
	}
	if run.CompletedAt != nil {
		ev.CompletedAt = run.CompletedAt.UTC()
	}
	for i := range run.Datasets {
		d := &run.Datasets[i]
		if !d.Committed() {
			continue
		}
		ev.Committed = append(ev.Committed, d.Dataset)
		if d.Kind == models.KindNeighbourhoods {
			ev.BoundariesChanged = true
		}
	}
	return ev
}

// Marshal encodes the event payload.
func (e RunCompleted) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalRunCompleted decodes a payload produced by Marshal.
func UnmarshalRunCompleted(data []byte) (RunCompleted, error) {
	var e RunCompleted
	if err := json.Unmarshal(data, &e); err != nil {
		return RunCompleted{}, fmt.Errorf("decode run completed event: %w", err)
	}
	if e.RunID == "" {
		return RunCompleted{}, fmt.Errorf("decode run completed event: missing run_id")
	}
	return e, nil
}
