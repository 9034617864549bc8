// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/models"
)

// neighbourhoodDataset labels boundary loads in errors and metrics.
const neighbourhoodDataset = "neighbourhoods"

const createNeighbourhoodStage = `CREATE OR REPLACE TEMP TABLE stage_neighbourhoods (
	seq INTEGER NOT NULL,
	area_code TEXT NOT NULL,
	short_code TEXT,
	name TEXT,
	geojson TEXT NOT NULL,
	bbox_xmin DOUBLE NOT NULL,
	bbox_ymin DOUBLE NOT NULL,
	bbox_xmax DOUBLE NOT NULL,
	bbox_ymax DOUBLE NOT NULL
)`

const dedupNeighbourhoodStage = `CREATE OR REPLACE TEMP TABLE stage_neighbourhoods_dedup AS
	SELECT * FROM stage_neighbourhoods
	QUALIFY ROW_NUMBER() OVER (PARTITION BY area_code ORDER BY seq DESC) = 1`

// upsertNeighbourhoodsSQL always refreshes stored boundaries. Invalid
// polygons are repaired with ST_MakeValid when spatial SQL is available.
func upsertNeighbourhoodsSQL(spatial bool) string {
	geomCol, geomExpr, geomSet := "", "", ""
	if spatial {
		geomCol = ", geom"
		geomExpr = `, CASE WHEN ST_IsValid(ST_GeomFromGeoJSON(geojson))
			THEN ST_GeomFromGeoJSON(geojson)
			ELSE ST_MakeValid(ST_GeomFromGeoJSON(geojson)) END`
		geomSet = ",\n\t\tgeom = excluded.geom"
	}
	return fmt.Sprintf(`INSERT INTO neighbourhoods (
		area_code, short_code, name, geojson,
		bbox_xmin, bbox_ymin, bbox_xmax, bbox_ymax%s, updated_at)
	SELECT area_code, short_code, name, geojson,
		bbox_xmin, bbox_ymin, bbox_xmax, bbox_ymax%s, CAST(? AS TIMESTAMP)
	FROM stage_neighbourhoods_dedup
	ON CONFLICT (area_code) DO UPDATE SET
		short_code = excluded.short_code,
		name = excluded.name,
		geojson = excluded.geojson,
		bbox_xmin = excluded.bbox_xmin,
		bbox_ymin = excluded.bbox_ymin,
		bbox_xmax = excluded.bbox_xmax,
		bbox_ymax = excluded.bbox_ymax%s,
		updated_at = excluded.updated_at`, geomCol, geomExpr, geomSet)
}

// LoadNeighbourhoods upserts boundary polygons keyed on area code using the
// same stage, dedup and upsert transaction as LoadIncidents.
func (db *DB) LoadNeighbourhoods(ctx context.Context, rows []models.NeighbourhoodPolygon) (models.LoadResult, error) {
	result := models.LoadResult{Received: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	err := db.withConflictRetry(ctx, neighbourhoodDataset, len(rows), func() error {
		deduped, upserted, err := db.loadNeighbourhoodsOnce(ctx, rows)
		if err != nil {
			return err
		}
		result.Deduped = deduped
		result.Upserted = upserted
		return nil
	})
	return result, err
}

func (db *DB) loadNeighbourhoodsOnce(ctx context.Context, rows []models.NeighbourhoodPolygon) (deduped int, upserted int64, err error) {
	start := time.Now()
	defer func() { observe("upsert", "neighbourhoods", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollbackWithLog(tx, err)
		}
	}()

	if _, err = tx.ExecContext(ctx, createNeighbourhoodStage); err != nil {
		return 0, 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stage_neighbourhoods VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare staging insert: %w", err)
	}
	for i := range rows {
		n := &rows[i]
		var geojson []byte
		if geojson, err = json.Marshal(n.Geometry); err != nil {
			closeQuietly(stmt)
			return 0, 0, fmt.Errorf("failed to encode geometry for %s: %w", n.AreaCode, err)
		}
		if _, err = stmt.ExecContext(ctx,
			i,
			n.AreaCode,
			emptyToNull(n.ShortCode),
			emptyToNull(n.Name),
			string(geojson),
			n.Bounds.West,
			n.Bounds.South,
			n.Bounds.East,
			n.Bounds.North,
		); err != nil {
			closeQuietly(stmt)
			return 0, 0, fmt.Errorf("failed to stage neighbourhood %s: %w", n.AreaCode, err)
		}
	}
	closeWithLog(stmt, "staging statement")

	if _, err = tx.ExecContext(ctx, dedupNeighbourhoodStage); err != nil {
		return 0, 0, fmt.Errorf("failed to dedup staging table: %w", err)
	}
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stage_neighbourhoods_dedup`).Scan(&deduped); err != nil {
		return 0, 0, fmt.Errorf("failed to count staged rows: %w", err)
	}

	res, err := tx.ExecContext(ctx, upsertNeighbourhoodsSQL(db.spatialAvailable), time.Now().UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert neighbourhoods: %w", err)
	}
	if upserted, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("failed to read upsert count: %w", err)
	}

	for _, table := range []string{"stage_neighbourhoods_dedup", "stage_neighbourhoods"} {
		if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return 0, 0, fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit load: %w", err)
	}
	return deduped, upserted, nil
}
