// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and GRADEBOARD_* environment variables on top.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"runtime"
	"strings"
	"time"
)

// Cache drivers accepted by CacheDriver.
const (
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of normalization workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the submission id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// GraderURL is the base URL of the grading backend. Empty runs cache-only.
	GraderURL string `koanf:"grader_url"`

	// GraderTimeoutMS bounds each backend request.
	GraderTimeoutMS int `koanf:"grader_timeout_ms"`

	// CacheDriver is one of memory, sqlite or postgres.
	CacheDriver string `koanf:"cache_driver"`

	// CacheDSN is the data source for sqlite and postgres caches.
	CacheDSN string `koanf:"cache_dsn"`

	// IngestSecret enables HS256 bearer tokens on POST /results when set.
	IngestSecret string `koanf:"ingest_secret"`

	// CORSOrigins is a comma separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`

	// MaxResultBytes caps the body of POST /results.
	MaxResultBytes int64 `koanf:"max_result_bytes"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":8080",
		QueueSize:       10_000,
		WorkerCount:     runtime.NumCPU() * 4,
		DedupeSize:      50_000,
		GraderTimeoutMS: 10_000,
		CacheDriver:     CacheMemory,
		CORSOrigins:     "*",
		MaxResultBytes:  1 << 20,
	}
}

// GraderTimeout returns GraderTimeoutMS as a duration.
func (c *Config) GraderTimeout() time.Duration {
	return time.Duration(c.GraderTimeoutMS) * time.Millisecond
}

// Origins splits CORSOrigins, dropping empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
