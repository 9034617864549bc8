// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/tomtom215/safetyview/internal/logging"
)

// SpatialOptionalEnvVar lets the store start without the spatial extension.
// Geometry columns are then omitted and spatial predicates fall back to
// numeric lon/lat and bounding-box comparisons.
const SpatialOptionalEnvVar = "DUCKDB_SPATIAL_OPTIONAL"

// duckdbVersion must match the duckdb-go-bindings version in go.mod.
const duckdbVersion = "v1.4.3"

var extensionTimeout = getExtensionTimeout()

func getExtensionTimeout() time.Duration {
	if timeoutStr := os.Getenv("DUCKDB_EXTENSION_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

type extensionRetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	BackoffMult float64
}

var defaultRetryConfig = extensionRetryConfig{
	MaxRetries:  3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	BackoffMult: 2.0,
}

// extensionSpec describes one DuckDB extension to install and verify.
type extensionSpec struct {
	Name              string
	VerifyQuery       string
	AvailabilityField func(*DB) *bool
	WarningMessage    string
}

func (db *DB) extensionSpecs() []*extensionSpec {
	return []*extensionSpec{
		{
			Name:              "spatial",
			VerifyQuery:       "SELECT ST_AsText(ST_Point(0, 0))",
			AvailabilityField: func(db *DB) *bool { return &db.spatialAvailable },
			WarningMessage:    "Spatial extension unavailable, storing lon/lat and bounding boxes only",
		},
		{
			Name:              "icu",
			VerifyQuery:       "SELECT timezone('UTC', TIMESTAMP '2024-01-01 12:00:00')::VARCHAR",
			AvailabilityField: func(db *DB) *bool { return &db.icuAvailable },
			WarningMessage:    "ICU extension unavailable, timezone functions limited",
		},
		{
			Name:              "json",
			VerifyQuery:       "SELECT json_extract('{\"name\":\"test\"}', '$.name')::VARCHAR",
			AvailabilityField: func(db *DB) *bool { return &db.jsonAvailable },
			WarningMessage:    "JSON extension unavailable, skip reasons stored as text only",
		},
	}
}

// installExtensions installs and loads the extensions the store uses.
// Without DUCKDB_SPATIAL_OPTIONAL=true every extension is required.
func (db *DB) installExtensions() error {
	optional := os.Getenv(SpatialOptionalEnvVar) == "true"
	for _, spec := range db.extensionSpecs() {
		if err := db.installCoreExtension(spec, optional); err != nil {
			return err
		}
	}
	logging.Debug().
		Bool("spatial", db.spatialAvailable).
		Bool("icu", db.icuAvailable).
		Bool("json", db.jsonAvailable).
		Msg("DuckDB extensions initialized")
	return nil
}

// installCoreExtension tries LOAD first (bundled or pre-installed
// extensions), then INSTALL and FORCE INSTALL. In optional mode nothing is
// downloaded: a failed LOAD marks the extension unavailable.
func (db *DB) installCoreExtension(spec *extensionSpec, optional bool) error {
	loadCmd := fmt.Sprintf("LOAD %s;", spec.Name)
	loadErr := db.execWithHardTimeout(loadCmd)
	if loadErr != nil {
		if optional {
			db.setExtensionUnavailable(spec, loadErr)
			return nil
		}
		if !isExtensionInstalledLocally(spec.Name) {
			if err := db.execWithRetry(fmt.Sprintf("INSTALL %s;", spec.Name), defaultRetryConfig); err != nil {
				if forceErr := db.execWithRetry(fmt.Sprintf("FORCE INSTALL %s;", spec.Name), defaultRetryConfig); forceErr != nil {
					return fmt.Errorf("failed to install %s extension: install error: %w, force install error: %w", spec.Name, err, forceErr)
				}
			}
		}
		if err := db.execWithHardTimeout(loadCmd); err != nil {
			return fmt.Errorf("failed to load %s extension: %w", spec.Name, err)
		}
	}

	if spec.VerifyQuery != "" {
		if _, err := db.queryRowWithHardTimeout(spec.VerifyQuery); err != nil {
			if optional {
				db.setExtensionUnavailable(spec, err)
				return nil
			}
			return fmt.Errorf("%s extension loaded but functions unavailable: %w", spec.Name, err)
		}
	}
	*spec.AvailabilityField(db) = true
	return nil
}

func (db *DB) setExtensionUnavailable(spec *extensionSpec, cause error) {
	*spec.AvailabilityField(db) = false
	logging.Warn().Str("extension", spec.Name).Err(cause).Msg(spec.WarningMessage)
}

// isExtensionInstalledLocally checks ~/.duckdb/extensions so pre-installed
// extensions skip the network INSTALL.
func isExtensionInstalledLocally(extensionName string) bool {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	platform := runtime.GOOS + "_" + runtime.GOARCH
	extPath := filepath.Join(homeDir, ".duckdb", "extensions", duckdbVersion, platform, extensionName+".duckdb_extension")
	_, err = os.Stat(extPath)
	return err == nil
}

// execWithHardTimeout enforces a timeout with select because DuckDB CGO
// calls do not observe context cancellation.
func (db *DB) execWithHardTimeout(query string) error {
	resultCh := make(chan error, 1)
	ctx, cancel := context.WithTimeout(context.Background(), extensionTimeout)
	defer cancel()

	go func() {
		_, err := db.conn.ExecContext(ctx, query)
		resultCh <- err
	}()

	select {
	case err := <-resultCh:
		return err
	case <-time.After(extensionTimeout):
		return fmt.Errorf("operation timed out after %v", extensionTimeout)
	}
}

func (db *DB) queryRowWithHardTimeout(query string) (interface{}, error) {
	type queryResult struct {
		value interface{}
		err   error
	}
	resultCh := make(chan queryResult, 1)
	ctx, cancel := context.WithTimeout(context.Background(), extensionTimeout)
	defer cancel()

	go func() {
		var result interface{}
		err := db.conn.QueryRowContext(ctx, query).Scan(&result)
		resultCh <- queryResult{value: result, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.value, result.err
	case <-time.After(extensionTimeout):
		return nil, fmt.Errorf("query timed out after %v", extensionTimeout)
	}
}

// execWithRetry retries transient network failures while downloading extensions.
func (db *DB) execWithRetry(query string, cfg extensionRetryConfig) error {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug().Int("attempt", attempt).Dur("delay", delay).Str("query", query).Msg("Retrying extension operation")
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * cfg.BackoffMult)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		err := db.execWithHardTimeout(query)
		if err == nil {
			return nil
		}
		lastErr = err

		errStr := err.Error()
		retryable := strings.Contains(errStr, "timed out") ||
			strings.Contains(errStr, "timeout") ||
			strings.Contains(errStr, "connection refused") ||
			strings.Contains(errStr, "503") ||
			strings.Contains(errStr, "temporary failure")
		if !retryable {
			return err
		}
	}
	return fmt.Errorf("extension operation failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}
