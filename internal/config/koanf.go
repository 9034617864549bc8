// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/safetyview/config.yaml",
	"/etc/safetyview/config.yml",
}

// ConfigPathEnvVar overrides the config file path. ETLConfigEnvVar is accepted
// as an alias for deployments that only run the batch job.
const (
	ConfigPathEnvVar = "CONFIG_PATH"
	ETLConfigEnvVar  = "ETL_CONFIG"
	DotEnvPathEnvVar = "DOTENV_PATH"
)

// Default upstream field names (Toronto Police Service MCI feeds).
const (
	DefaultEventIDField        = "EVENT_UNIQUE_ID"
	DefaultReportDateField     = "REPORT_DATE"
	DefaultOccurrenceDateField = "OCC_DATE"
	DefaultOffenceField        = "OFFENCE"
	DefaultCategoryField       = "MCI_CATEGORY"
	DefaultNeighbourhoodField  = "HOOD_158"
	DefaultLongitudeField      = "LONG_WGS84"
	DefaultLatitudeField       = "LAT_WGS84"
)

// Defaults returns the built-in configuration without reading files or the
// environment.
func Defaults() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:                   "/data/safetyview.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,
			PreserveInsertionOrder: false,
			QueryTimeout:           30 * time.Second,
		},
		Sources: SourcesConfig{
			Neighbourhoods: NeighbourhoodSourceConfig{
				AreaCode:  "AREA_LONG_CODE",
				ShortCode: "AREA_SHORT_CODE",
				Name:      "AREA_NAME",
			},
			Fields: FieldMappingConfig{
				EventID:        DefaultEventIDField,
				ReportDate:     DefaultReportDateField,
				OccurrenceDate: DefaultOccurrenceDateField,
				Offence:        DefaultOffenceField,
				Category:       DefaultCategoryField,
				Neighbourhood:  DefaultNeighbourhoodField,
				Longitude:      DefaultLongitudeField,
				Latitude:       DefaultLatitudeField,
			},
			PageSize:     2000,
			Timeout:      60 * time.Second,
			MaxRetries:   4,
			RetryBackoff: 2 * time.Second,
			RateLimit:    5,
			UserAgent:    "safetyview-etl",
		},
		ETL: ETLConfig{
			WindowDays:      7,
			OverlapMargin:   72 * time.Hour,
			Workers:         4,
			FetchAttempts:   2,
			FetchRetryDelay: 5 * time.Second,
			LoadRetries:     3,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8888,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			QueryTimeout:      30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Cache: CacheConfig{
			TTL:                   5 * time.Minute,
			NeighbourhoodCapacity: 256,
		},
		Events: EventsConfig{
			Enabled:      true,
			Topic:        "safetyview.ingest.run.completed",
			EmbeddedPort: 4222,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration in layers:
//  1. Struct defaults
//  2. Optional YAML config file
//  3. Environment variables, after an optional .env file has been merged
//     into the process environment (existing variables are never overridden)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// DUCKDB_PATH -> database.path, ETL_WINDOW_DAYS -> etl.window_days
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processMapFields(k); err != nil {
		return nil, fmt.Errorf("failed to process map fields: %w", err)
	}
	if err := processBoolFields(k); err != nil {
		return nil, fmt.Errorf("failed to process bool fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotEnv merges a .env file into the environment when one exists.
func loadDotEnv() error {
	path := os.Getenv(DotEnvPathEnvVar)
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ConfigFilePath returns the YAML file Load reads, or "" when there is none.
func ConfigFilePath() string {
	return findConfigFile()
}

func findConfigFile() string {
	for _, name := range []string{ConfigPathEnvVar, ETLConfigEnvVar} {
		if envPath := os.Getenv(name); envPath != "" {
			if _, err := os.Stat(envPath); err == nil {
				return envPath
			}
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		trimmed := splitList(strVal)
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// mapConfigPaths are parsed from "name=value,name=value" env values.
var mapConfigPaths = []string{
	"sources.datasets",
}

func processMapFields(k *koanf.Koanf) error {
	for _, path := range mapConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parsed, err := parseKeyValueList(strVal)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		// Delete first so the env value replaces the file value instead of
		// merging with it.
		k.Delete(path)
		if len(parsed) == 0 {
			continue
		}
		if err := k.Set(path, parsed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// boolConfigPaths accept yes/on/no/off in addition to strconv.ParseBool forms.
var boolConfigPaths = []string{
	"etl.backfill",
	"etl.run_on_startup",
	"server.rate_limit_disabled",
	"events.enabled",
	"events.embedded_server",
	"logging.caller",
}

func processBoolFields(k *koanf.Koanf) error {
	for _, path := range boolConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		if err := k.Set(path, parseFlexibleBool(strVal)); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func parseFlexibleBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseKeyValueList parses "robbery=https://a,theft_over=https://b". Only the
// first '=' separates name from value so URLs may carry query strings.
func parseKeyValueList(s string) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	for _, item := range splitList(s) {
		name, value, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("invalid entry %q, expected name=value", item)
		}
		if strings.Contains(name, ".") {
			return nil, fmt.Errorf("dataset name %q must not contain '.'", name)
		}
		out[name] = value
	}
	return out, nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"duckdb_path":                  "database.path",
	"duckdb_max_memory":            "database.max_memory",
	"duckdb_threads":               "database.threads",
	"duckdb_query_timeout":         "database.query_timeout",
	"source_datasets":              "sources.datasets",
	"neighbourhoods_url":           "sources.neighbourhoods.url",
	"source_page_size":             "sources.page_size",
	"source_timeout":               "sources.timeout",
	"source_max_retries":           "sources.max_retries",
	"source_retry_backoff":         "sources.retry_backoff",
	"source_rate_limit":            "sources.rate_limit",
	"source_user_agent":            "sources.user_agent",
	"etl_window_days":              "etl.window_days",
	"etl_backfill":                 "etl.backfill",
	"etl_backfill_start":           "etl.backfill_start",
	"etl_overlap_margin":           "etl.overlap_margin",
	"etl_workers":                  "etl.workers",
	"etl_fetch_attempts":           "etl.fetch_attempts",
	"etl_fetch_retry_delay":        "etl.fetch_retry_delay",
	"etl_load_retries":             "etl.load_retries",
	"etl_schedule":                 "etl.schedule",
	"etl_run_on_startup":           "etl.run_on_startup",
	"http_host":                    "server.host",
	"http_port":                    "server.port",
	"http_read_timeout":            "server.read_timeout",
	"http_write_timeout":           "server.write_timeout",
	"http_shutdown_timeout":        "server.shutdown_timeout",
	"api_query_timeout":            "server.query_timeout",
	"cors_origins":                 "server.cors_origins",
	"rate_limit_requests":          "server.rate_limit_requests",
	"rate_limit_window":            "server.rate_limit_window",
	"disable_rate_limit":           "server.rate_limit_disabled",
	"cache_ttl":                    "cache.ttl",
	"neighbourhood_cache_capacity": "cache.neighbourhood_capacity",
	"events_enabled":               "events.enabled",
	"nats_url":                     "events.nats_url",
	"events_topic":                 "events.topic",
	"nats_embedded":                "events.embedded_server",
	"nats_embedded_port":           "events.embedded_port",
	"log_level":                    "logging.level",
	"log_format":                   "logging.format",
	"log_caller":                   "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile invokes callback whenever the file at path changes.
// Callers must guard the reloaded configuration themselves.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
