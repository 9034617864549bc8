// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config is the complete SafetyView configuration.
//
// Sources are layered by LoadWithKoanf: built-in defaults, then an optional
// YAML file, then environment variables (highest priority).
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Sources  SourcesConfig  `koanf:"sources"`
	ETL      ETLConfig      `koanf:"etl"`
	Server   ServerConfig   `koanf:"server"`
	Cache    CacheConfig    `koanf:"cache"`
	Events   EventsConfig   `koanf:"events"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path                   string        `koanf:"path"`
	MaxMemory              string        `koanf:"max_memory"`
	Threads                int           `koanf:"threads"` // 0 = runtime.NumCPU()
	PreserveInsertionOrder bool          `koanf:"preserve_insertion_order"`
	QueryTimeout           time.Duration `koanf:"query_timeout"`
	SkipIndexes            bool          `koanf:"skip_indexes"` // tests only
}

// SourcesConfig describes the upstream feature services.
type SourcesConfig struct {
	// Datasets maps a dataset identifier (e.g. "robbery") to its feature
	// service query URL.
	Datasets       map[string]string        `koanf:"datasets"`
	Neighbourhoods NeighbourhoodSourceConfig `koanf:"neighbourhoods"`
	Fields         FieldMappingConfig        `koanf:"fields"`
	PageSize       int                       `koanf:"page_size"`
	Timeout        time.Duration             `koanf:"timeout"`
	MaxRetries     int                       `koanf:"max_retries"`
	RetryBackoff   time.Duration             `koanf:"retry_backoff"`
	RateLimit      float64                   `koanf:"rate_limit"` // requests per second per connector, 0 = unlimited
	UserAgent      string                    `koanf:"user_agent"`
}

// ReservedBoundaryDataset is the dataset name ingestion runs use for the
// boundary feed. Incident datasets may not use it.
const ReservedBoundaryDataset = "neighbourhoods"

// NeighbourhoodSourceConfig describes the boundary feed.
type NeighbourhoodSourceConfig struct {
	URL       string `koanf:"url"`
	AreaCode  string `koanf:"area_code_field"`
	ShortCode string `koanf:"short_code_field"`
	Name      string `koanf:"name_field"`
}

// FieldMappingConfig maps upstream attribute names to incident fields.
type FieldMappingConfig struct {
	EventID        string `koanf:"event_id"`
	ReportDate     string `koanf:"report_date"`
	OccurrenceDate string `koanf:"occurrence_date"`
	Offence        string `koanf:"offence"`
	Category       string `koanf:"category"`
	Neighbourhood  string `koanf:"neighbourhood"`
	Longitude      string `koanf:"longitude"`
	Latitude       string `koanf:"latitude"`
}

// ETLConfig controls ingestion windows and concurrency.
type ETLConfig struct {
	WindowDays      int           `koanf:"window_days"`
	Backfill        bool          `koanf:"backfill"`
	BackfillStart   string        `koanf:"backfill_start"` // YYYY-MM-DD, UTC midnight
	OverlapMargin   time.Duration `koanf:"overlap_margin"`
	Workers         int           `koanf:"workers"`
	FetchAttempts   int           `koanf:"fetch_attempts"`
	FetchRetryDelay time.Duration `koanf:"fetch_retry_delay"`
	LoadRetries     int           `koanf:"load_retries"`
	Schedule        time.Duration `koanf:"schedule"` // server-resident interval, 0 disables
	RunOnStartup    bool          `koanf:"run_on_startup"`
}

// BackfillStartTime parses BackfillStart. The zero time means "all records".
func (e *ETLConfig) BackfillStartTime() (time.Time, error) {
	if strings.TrimSpace(e.BackfillStart) == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(e.BackfillStart), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("ETL_BACKFILL_START must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	QueryTimeout      time.Duration `koanf:"query_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns host:port for http.Server.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CacheConfig configures in-process caches.
type CacheConfig struct {
	TTL                   time.Duration `koanf:"ttl"`
	NeighbourhoodCapacity int           `koanf:"neighbourhood_capacity"`
}

// EventsConfig configures the ingestion event bus.
type EventsConfig struct {
	Enabled        bool   `koanf:"enabled"`
	NATSURL        string `koanf:"nats_url"` // empty = in-process bus
	Topic          string `koanf:"topic"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	EmbeddedPort   int    `koanf:"embedded_port"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from all layered sources and validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// DatasetNames returns the configured incident datasets in stable order.
func (c *Config) DatasetNames() []string {
	names := make([]string, 0, len(c.Sources.Datasets))
	for name := range c.Sources.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
