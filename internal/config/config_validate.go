// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package config

import (
	"fmt"
	"strings"
)

// Validate checks that configuration values are usable by both the API
// server and the ETL job. Source URLs are checked separately by
// ValidateForIngestion because the API can run without them.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateETL(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateForIngestion additionally requires at least one upstream source.
func (c *Config) ValidateForIngestion() error {
	if len(c.Sources.Datasets) == 0 && c.Sources.Neighbourhoods.URL == "" {
		return fmt.Errorf("SOURCE_DATASETS or NEIGHBOURHOODS_URL must be configured to run ingestion")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0, got %d", c.Database.Threads)
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("DUCKDB_QUERY_TIMEOUT must be positive, got %v", c.Database.QueryTimeout)
	}
	return nil
}

func (c *Config) validateSources() error {
	for name, rawURL := range c.Sources.Datasets {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("SOURCE_DATASETS contains an empty dataset name")
		}
		if name == ReservedBoundaryDataset {
			return fmt.Errorf("SOURCE_DATASETS: dataset name %q is reserved for the boundary feed", name)
		}
		if err := validateServiceURL(rawURL, "SOURCE_DATASETS["+name+"]"); err != nil {
			return err
		}
	}
	if c.Sources.Neighbourhoods.URL != "" {
		if err := validateServiceURL(c.Sources.Neighbourhoods.URL, "NEIGHBOURHOODS_URL"); err != nil {
			return err
		}
	}
	if c.Sources.PageSize < 1 || c.Sources.PageSize > 10000 {
		return fmt.Errorf("SOURCE_PAGE_SIZE must be between 1 and 10000, got %d", c.Sources.PageSize)
	}
	if c.Sources.Timeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive, got %v", c.Sources.Timeout)
	}
	if c.Sources.MaxRetries < 1 {
		return fmt.Errorf("SOURCE_MAX_RETRIES must be at least 1, got %d", c.Sources.MaxRetries)
	}
	if c.Sources.RetryBackoff < 0 {
		return fmt.Errorf("SOURCE_RETRY_BACKOFF must not be negative, got %v", c.Sources.RetryBackoff)
	}
	if c.Sources.RateLimit < 0 {
		return fmt.Errorf("SOURCE_RATE_LIMIT must not be negative, got %v", c.Sources.RateLimit)
	}
	f := c.Sources.Fields
	for field, value := range map[string]string{
		"event_id":    f.EventID,
		"report_date": f.ReportDate,
		"longitude":   f.Longitude,
		"latitude":    f.Latitude,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("sources.fields.%s is required", field)
		}
	}
	if c.Sources.Neighbourhoods.AreaCode == "" {
		return fmt.Errorf("sources.neighbourhoods.area_code_field is required")
	}
	return nil
}

func (c *Config) validateETL() error {
	if c.ETL.WindowDays < 1 {
		return fmt.Errorf("ETL_WINDOW_DAYS must be at least 1, got %d", c.ETL.WindowDays)
	}
	if _, err := c.ETL.BackfillStartTime(); err != nil {
		return err
	}
	if c.ETL.OverlapMargin < 0 {
		return fmt.Errorf("ETL_OVERLAP_MARGIN must not be negative, got %v", c.ETL.OverlapMargin)
	}
	if c.ETL.Workers < 1 {
		return fmt.Errorf("ETL_WORKERS must be at least 1, got %d", c.ETL.Workers)
	}
	if c.ETL.FetchAttempts < 1 {
		return fmt.Errorf("ETL_FETCH_ATTEMPTS must be at least 1, got %d", c.ETL.FetchAttempts)
	}
	if c.ETL.LoadRetries < 1 {
		return fmt.Errorf("ETL_LOAD_RETRIES must be at least 1, got %d", c.ETL.LoadRetries)
	}
	if c.ETL.Schedule < 0 {
		return fmt.Errorf("ETL_SCHEDULE must not be negative, got %v", c.ETL.Schedule)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.QueryTimeout <= 0 {
		return fmt.Errorf("API_QUERY_TIMEOUT must be positive, got %v", c.Server.QueryTimeout)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitRequests < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitRequests)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Server.RateLimitWindow)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %v", c.Cache.TTL)
	}
	if c.Cache.NeighbourhoodCapacity < 1 {
		return fmt.Errorf("NEIGHBOURHOOD_CACHE_CAPACITY must be at least 1, got %d", c.Cache.NeighbourhoodCapacity)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC is required when EVENTS_ENABLED=true")
	}
	if c.Events.NATSURL != "" {
		if err := validateNATSURL(c.Events.NATSURL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	}
	if c.Events.EmbeddedServer && (c.Events.EmbeddedPort < 1 || c.Events.EmbeddedPort > 65535) {
		return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535, got %d", c.Events.EmbeddedPort)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
