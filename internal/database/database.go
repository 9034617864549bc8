// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/metrics"
)

// DB wraps the DuckDB connection and provides the store used by the loader,
// the query engine and the ingestion run log.
type DB struct {
	conn             *sql.DB
	cfg              *config.DatabaseConfig
	spatialAvailable bool
	icuAvailable     bool
	jsonAvailable    bool

	// loadRetries bounds whole-batch retries after DuckDB transaction conflicts.
	loadRetries    int
	loadRetryDelay time.Duration
}

// New opens (or creates) the database, loads extensions and applies
// pending migrations.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.initialize(); err != nil {
		closeQuietly(db.conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// open connects and loads extensions without touching the schema.
func open(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	preserveOrder := "false"
	if cfg.PreserveInsertionOrder {
		preserveOrder = "true"
	}

	// Extensions are loaded explicitly in installExtensions with hard timeouts.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory, preserveOrder)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:             conn,
		cfg:              cfg,
		spatialAvailable: true,
		icuAvailable:     true,
		jsonAvailable:    true,
		loadRetries:      3,
		loadRetryDelay:   250 * time.Millisecond,
	}
	db.configureConnectionPool()

	if err := db.installExtensions(); err != nil {
		closeQuietly(conn)
		return nil, err
	}
	metrics.SetSpatialAvailable(db.spatialAvailable)
	return db, nil
}

// newFromConn wraps an existing *sql.DB without installing extensions or
// migrating. Used with sqlmock in tests.
func newFromConn(conn *sql.DB, spatial bool) *DB {
	return &DB{
		conn:             conn,
		cfg:              &config.DatabaseConfig{Path: ":memory:", QueryTimeout: 30 * time.Second},
		spatialAvailable: spatial,
		loadRetries:      3,
		loadRetryDelay:   time.Millisecond,
	}
}

func (db *DB) initialize() error {
	if err := db.runVersionedMigrations(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}
	return nil
}

// IsSpatialAvailable reports whether geometry columns and ST_* predicates are in use.
func (db *DB) IsSpatialAvailable() bool {
	return db.spatialAvailable
}

// SetLoadRetries bounds whole-batch retries after transaction conflicts.
func (db *DB) SetLoadRetries(n int) {
	if n < 1 {
		n = 1
	}
	db.loadRetries = n
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close checkpoints the WAL and closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if db.cfg.Path != ":memory:" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}
