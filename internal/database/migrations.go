// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/safetyview/internal/logging"
)

// Migration is a versioned, append-only schema change.
//
// Migrations that need the spatial extension are skipped (and not recorded)
// while it is unavailable, so they apply on the first start that has it.
type Migration struct {
	Version         int
	Name            string
	Description     string
	SQL             []string
	RequiresSpatial bool
	AppliedAt       time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
);
`

// Timestamps are stored as naive TIMESTAMP values in UTC.
//
// The geometry columns carry no RTREE index: DuckDB rejects ON CONFLICT DO
// UPDATE assignments to index-referenced columns, and the loader recomputes
// geometry on every write. Spatial filters pair ST_Intersects with lon/lat
// or bbox range predicates that DuckDB prunes with zonemaps.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "create_incidents",
		Description: "Incident points keyed by (dataset, event_unique_id)",
		SQL: []string{
			`CREATE SEQUENCE IF NOT EXISTS incidents_id_seq START 1`,
			`CREATE TABLE IF NOT EXISTS incidents (
				id BIGINT PRIMARY KEY DEFAULT nextval('incidents_id_seq'),
				dataset TEXT NOT NULL,
				event_unique_id TEXT NOT NULL,
				report_ts TIMESTAMP NOT NULL,
				occ_ts TIMESTAMP,
				offence TEXT,
				category TEXT,
				neighbourhood_code TEXT,
				lon DOUBLE NOT NULL,
				lat DOUBLE NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				UNIQUE (dataset, event_unique_id)
			)`,
		},
	},
	{
		Version:     2,
		Name:        "create_neighbourhoods",
		Description: "Neighbourhood polygons with GeoJSON text and bounding box",
		SQL: []string{
			`CREATE TABLE IF NOT EXISTS neighbourhoods (
				area_code TEXT PRIMARY KEY,
				short_code TEXT,
				name TEXT,
				geojson TEXT NOT NULL,
				bbox_xmin DOUBLE NOT NULL,
				bbox_ymin DOUBLE NOT NULL,
				bbox_xmax DOUBLE NOT NULL,
				bbox_ymax DOUBLE NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
		},
	},
	{
		Version:     3,
		Name:        "create_aggregates",
		Description: "Precomputed dashboard aggregates refreshed after each run",
		SQL: []string{
			`CREATE TABLE IF NOT EXISTS agg_daily_counts (
				dataset TEXT NOT NULL,
				day DATE NOT NULL,
				count BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS agg_neighbourhood_counts (
				neighbourhood_code TEXT,
				dataset TEXT NOT NULL,
				count BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS agg_last_30d (
				day DATE NOT NULL,
				count BIGINT NOT NULL
			)`,
		},
	},
	{
		Version:     4,
		Name:        "create_ingestion_runs",
		Description: "Ingestion run log with one row per dataset",
		SQL: []string{
			`CREATE TABLE IF NOT EXISTS ingestion_runs (
				id TEXT PRIMARY KEY,
				trigger TEXT NOT NULL,
				status TEXT NOT NULL,
				backfill BOOLEAN NOT NULL DEFAULT false,
				started_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS ingestion_run_datasets (
				run_id TEXT NOT NULL,
				dataset TEXT NOT NULL,
				kind TEXT NOT NULL,
				state TEXT NOT NULL,
				window_start TIMESTAMP,
				window_end TIMESTAMP,
				rows_fetched BIGINT NOT NULL DEFAULT 0,
				rows_loaded BIGINT NOT NULL DEFAULT 0,
				rows_skipped BIGINT NOT NULL DEFAULT 0,
				skip_reasons TEXT,
				error TEXT,
				fetch_attempts INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP,
				PRIMARY KEY (run_id, dataset)
			)`,
		},
	},
	{
		Version:         5,
		Name:            "incidents_geometry",
		Description:     "Point geometry derived from lon/lat",
		RequiresSpatial: true,
		SQL: []string{
			`ALTER TABLE incidents ADD COLUMN IF NOT EXISTS geom GEOMETRY`,
			`UPDATE incidents SET geom = ST_Point(lon, lat) WHERE geom IS NULL`,
		},
	},
	{
		Version:         6,
		Name:            "neighbourhoods_geometry",
		Description:     "Polygon geometry parsed from stored GeoJSON",
		RequiresSpatial: true,
		SQL: []string{
			`ALTER TABLE neighbourhoods ADD COLUMN IF NOT EXISTS geom GEOMETRY`,
			`UPDATE neighbourhoods
				SET geom = CASE WHEN ST_IsValid(ST_GeomFromGeoJSON(geojson))
					THEN ST_GeomFromGeoJSON(geojson)
					ELSE ST_MakeValid(ST_GeomFromGeoJSON(geojson)) END
				WHERE geom IS NULL`,
		},
	},
}

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, COALESCE(description, ''), applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// runVersionedMigrations applies pending migrations in version order, each
// in its own transaction together with its schema_migrations record.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	newMigrations := 0
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if m.RequiresSpatial && !db.spatialAvailable {
			logging.Debug().Int("version", m.Version).Str("name", m.Name).Msg("Deferring spatial migration")
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return err
		}
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Int("applied", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration v%d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			rollbackWithLog(tx, err)
		}
	}()

	for _, stmt := range m.SQL {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
		m.Version, m.Name, m.Description); err != nil {
		return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
	}
	return nil
}

// Migrate applies pending migrations. New already does this; the ETL
// migrate command calls it explicitly to report the result.
func (db *DB) Migrate() error {
	return db.runVersionedMigrations()
}

// PendingMigrations lists migrations not yet applied, including spatial
// ones deferred because the extension is unavailable.
func (db *DB) PendingMigrations(ctx context.Context) ([]Migration, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, m := range migrations {
		if _, ok := applied[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// GetCurrentSchemaVersion returns the highest applied migration version.
func (db *DB) GetCurrentSchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// GetMigrationHistory returns all applied migrations in order.
func (db *DB) GetMigrationHistory(ctx context.Context) ([]Migration, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	history := make([]Migration, 0, len(applied))
	for _, m := range migrations {
		if a, ok := applied[m.Version]; ok {
			history = append(history, a)
		}
	}
	return history, nil
}
