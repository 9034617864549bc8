// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package ingest

import (
	"fmt"

	"github.com/tomtom215/safetyview/internal/models"
)

// transitions lists the legal successors of each non-terminal state.
var transitions = map[models.DatasetState][]models.DatasetState{
	models.StatePending:  {models.StateFetching, models.StateFailed},
	models.StateFetching: {models.StateStaging, models.StateFailed},
	models.StateStaging:  {models.StateCommitted, models.StateFailed},
}

// IllegalTransitionError reports a state change the machine does not allow.
type IllegalTransitionError struct {
	Dataset string
	From    models.DatasetState
	To      models.DatasetState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("dataset %s: illegal transition %s -> %s", e.Dataset, e.From, e.To)
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to models.DatasetState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition moves d to the next state or returns an IllegalTransitionError
// leaving d untouched.
func transition(d *models.DatasetRun, to models.DatasetState) error {
	if !CanTransition(d.State, to) {
		return &IllegalTransitionError{Dataset: d.Dataset, From: d.State, To: to}
	}
	d.State = to
	return nil
}
