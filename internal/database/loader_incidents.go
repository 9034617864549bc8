// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/safetyview/internal/models"
)

const createIncidentStage = `CREATE OR REPLACE TEMP TABLE stage_incidents (
	seq INTEGER NOT NULL,
	event_unique_id TEXT NOT NULL,
	report_ts TIMESTAMP NOT NULL,
	occ_ts TIMESTAMP,
	offence TEXT,
	category TEXT,
	neighbourhood_code TEXT,
	lon DOUBLE NOT NULL,
	lat DOUBLE NOT NULL
)`

// Later report timestamps win; ties keep the row sent last.
const dedupIncidentStage = `CREATE OR REPLACE TEMP TABLE stage_incidents_dedup AS
	SELECT * FROM stage_incidents
	QUALIFY ROW_NUMBER() OVER (PARTITION BY event_unique_id ORDER BY report_ts DESC, seq DESC) = 1`

// upsertIncidentsSQL builds the set-based upsert. The WHERE on the update
// arm keeps an older upstream version from overwriting a newer stored one.
func upsertIncidentsSQL(spatial bool) string {
	geomCol, geomExpr, geomSet := "", "", ""
	if spatial {
		geomCol = ", geom"
		geomExpr = ", ST_Point(lon, lat)"
		geomSet = ",\n\t\tgeom = excluded.geom"
	}
	return fmt.Sprintf(`INSERT INTO incidents (
		dataset, event_unique_id, report_ts, occ_ts, offence, category,
		neighbourhood_code, lon, lat%s, updated_at)
	SELECT CAST(? AS TEXT), event_unique_id, report_ts, occ_ts, offence, category,
		neighbourhood_code, lon, lat%s, CAST(? AS TIMESTAMP)
	FROM stage_incidents_dedup
	ON CONFLICT (dataset, event_unique_id) DO UPDATE SET
		report_ts = excluded.report_ts,
		occ_ts = excluded.occ_ts,
		offence = excluded.offence,
		category = excluded.category,
		neighbourhood_code = excluded.neighbourhood_code,
		lon = excluded.lon,
		lat = excluded.lat%s,
		updated_at = excluded.updated_at
	WHERE excluded.report_ts >= incidents.report_ts`, geomCol, geomExpr, geomSet)
}

// LoadIncidents writes one dataset's batch in a single transaction: stage,
// dedup within the batch, then upsert on (dataset, event_unique_id). Every
// row is forced to dataset. Either the whole batch commits or nothing does.
func (db *DB) LoadIncidents(ctx context.Context, dataset string, rows []models.Incident) (models.LoadResult, error) {
	result := models.LoadResult{Received: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	err := db.withConflictRetry(ctx, dataset, len(rows), func() error {
		deduped, upserted, err := db.loadIncidentsOnce(ctx, dataset, rows)
		if err != nil {
			return err
		}
		result.Deduped = deduped
		result.Upserted = upserted
		return nil
	})
	return result, err
}

func (db *DB) loadIncidentsOnce(ctx context.Context, dataset string, rows []models.Incident) (deduped int, upserted int64, err error) {
	start := time.Now()
	defer func() { observe("upsert", "incidents", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollbackWithLog(tx, err)
		}
	}()

	if _, err = tx.ExecContext(ctx, createIncidentStage); err != nil {
		return 0, 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stage_incidents VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare staging insert: %w", err)
	}
	for i := range rows {
		r := &rows[i]
		if _, err = stmt.ExecContext(ctx,
			i,
			r.EventUniqueID,
			utcNaive(r.ReportTimestamp),
			nullableTime(r.OccurrenceTimestamp),
			emptyToNull(r.Offence),
			emptyToNull(r.Category),
			nullableString(r.NeighbourhoodCode),
			r.Longitude,
			r.Latitude,
		); err != nil {
			closeQuietly(stmt)
			return 0, 0, fmt.Errorf("failed to stage row %d (%s): %w", i, r.EventUniqueID, err)
		}
	}
	closeWithLog(stmt, "staging statement")

	if _, err = tx.ExecContext(ctx, dedupIncidentStage); err != nil {
		return 0, 0, fmt.Errorf("failed to dedup staging table: %w", err)
	}
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stage_incidents_dedup`).Scan(&deduped); err != nil {
		return 0, 0, fmt.Errorf("failed to count staged rows: %w", err)
	}

	res, err := tx.ExecContext(ctx, upsertIncidentsSQL(db.spatialAvailable), dataset, time.Now().UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert incidents: %w", err)
	}
	if upserted, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("failed to read upsert count: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS stage_incidents_dedup`); err != nil {
		return 0, 0, fmt.Errorf("failed to drop staging table: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS stage_incidents`); err != nil {
		return 0, 0, fmt.Errorf("failed to drop staging table: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit load: %w", err)
	}
	return deduped, upserted, nil
}
