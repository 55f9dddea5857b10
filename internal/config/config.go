// Package config provides configuration management for flowdex.
//
// The configuration is stored in TOML format and supports validation
// and default values for all fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Backend names accepted by remote.backend.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendPostgREST = "postgrest"
)

// Config is the top-level configuration struct for flowdex.
type Config struct {
	Remote   RemoteConfig   `toml:"remote"`
	Database DatabaseConfig `toml:"database"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Download DownloadConfig `toml:"download"`
	Index    IndexConfig    `toml:"index"`
	Log      LogConfig      `toml:"log"`
}

// RemoteConfig selects and configures the table store.
type RemoteConfig struct {
	// Backend is the table store implementation.
	// Valid values: "memory", "sqlite", "postgrest".
	Backend string `toml:"backend"`

	// URL is the base URL of the hosted PostgREST endpoint (postgrest only).
	URL string `toml:"url"`

	// APIKeyEnv is the environment variable holding the API key (postgrest only).
	APIKeyEnv string `toml:"api_key_env"`

	// Timeout bounds a single HTTP request.
	Timeout Duration `toml:"timeout"`

	// MaxRetries is the number of retries on transient failures.
	MaxRetries int `toml:"max_retries"`
}

// DatabaseConfig contains settings for the sqlite backend.
type DatabaseConfig struct {
	// Path is the sqlite database file.
	Path string `toml:"path"`
}

// CatalogConfig contains aggregation settings.
type CatalogConfig struct {
	// FallbackCategory receives workflows whose category cannot be resolved.
	FallbackCategory string `toml:"fallback_category"`

	// MediumThreshold: complexity scores above it are "medium".
	MediumThreshold int `toml:"medium_threshold"`

	// ComplexThreshold: complexity scores above it are "complex".
	ComplexThreshold int `toml:"complex_threshold"`

	// FetchTimeout bounds each table fetch of a catalog load.
	FetchTimeout Duration `toml:"fetch_timeout"`

	// ActiveOnly restricts workflow rows to is_active = true.
	ActiveOnly bool `toml:"active_only"`
}

// DownloadConfig contains download resolver settings.
type DownloadConfig struct {
	// Root is the directory workflow file paths are resolved against.
	Root string `toml:"root"`

	// OutputDir is where downloaded files are saved.
	OutputDir string `toml:"output_dir"`
}

// IndexConfig contains directory indexer settings.
type IndexConfig struct {
	// MaxInlineBytes is the largest .json file stored inline in the json column.
	MaxInlineBytes int64 `toml:"max_inline_bytes"`

	// BatchSize is the number of rows per insert.
	BatchSize int `toml:"batch_size"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `toml:"level"`

	// Format is one of: console, json.
	Format string `toml:"format"`

	// File is an optional log file path in addition to stderr.
	File string `toml:"file"`
}

// Duration is a time.Duration that encodes as a TOML string ("10s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns a Config with all default values set.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Remote: RemoteConfig{
			Backend:    BackendSQLite,
			URL:        "",
			APIKeyEnv:  "SUPABASE_ANON_KEY",
			Timeout:    Duration{10 * time.Second},
			MaxRetries: 1,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(homeDir, ".local", "share", "flowdex", "catalog.db"),
		},
		Catalog: CatalogConfig{
			FallbackCategory: "Other",
			MediumThreshold:  10,
			ComplexThreshold: 20,
			FetchTimeout:     Duration{15 * time.Second},
			ActiveOnly:       true,
		},
		Download: DownloadConfig{
			Root:      ".",
			OutputDir: ".",
		},
		Index: IndexConfig{
			MaxInlineBytes: 1 << 20,
			BatchSize:      100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   "",
		},
	}
}

// Validate checks the configuration for valid values.
// Returns a nil error if the config is valid, or an error describing the problem.
func (c *Config) Validate() error {
	// Validate Remote section
	validBackends := map[string]bool{
		BackendMemory:    true,
		BackendSQLite:    true,
		BackendPostgREST: true,
	}
	if !validBackends[c.Remote.Backend] {
		return fmt.Errorf("remote.backend must be one of: memory, sqlite, postgrest; got %q", c.Remote.Backend)
	}
	if c.Remote.Backend == BackendPostgREST {
		if c.Remote.URL == "" {
			return fmt.Errorf("remote.url cannot be empty when remote.backend is postgrest")
		}
		if c.Remote.APIKeyEnv == "" {
			return fmt.Errorf("remote.api_key_env cannot be empty when remote.backend is postgrest")
		}
	}
	if c.Remote.Timeout.Duration <= 0 {
		return fmt.Errorf("remote.timeout must be > 0; got %s", c.Remote.Timeout)
	}
	if c.Remote.MaxRetries < 0 {
		return fmt.Errorf("remote.max_retries must be >= 0; got %d", c.Remote.MaxRetries)
	}

	// Validate Database section
	if c.Remote.Backend == BackendSQLite && c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty when remote.backend is sqlite")
	}

	// Validate Catalog section
	if c.Catalog.FallbackCategory == "" {
		return fmt.Errorf("catalog.fallback_category cannot be empty")
	}
	if c.Catalog.MediumThreshold < 0 {
		return fmt.Errorf("catalog.medium_threshold must be >= 0; got %d", c.Catalog.MediumThreshold)
	}
	if c.Catalog.ComplexThreshold <= c.Catalog.MediumThreshold {
		return fmt.Errorf("catalog.complex_threshold (%d) must be greater than catalog.medium_threshold (%d)",
			c.Catalog.ComplexThreshold, c.Catalog.MediumThreshold)
	}
	if c.Catalog.FetchTimeout.Duration <= 0 {
		return fmt.Errorf("catalog.fetch_timeout must be > 0; got %s", c.Catalog.FetchTimeout)
	}

	// Validate Download section
	if c.Download.Root == "" {
		return fmt.Errorf("download.root cannot be empty")
	}
	if c.Download.OutputDir == "" {
		return fmt.Errorf("download.output_dir cannot be empty")
	}

	// Validate Index section
	if c.Index.MaxInlineBytes < 0 {
		return fmt.Errorf("index.max_inline_bytes must be >= 0; got %d", c.Index.MaxInlineBytes)
	}
	if c.Index.BatchSize < 1 {
		return fmt.Errorf("index.batch_size must be >= 1; got %d", c.Index.BatchSize)
	}

	// Validate Log section
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: console, json; got %q", c.Log.Format)
	}

	return nil
}

// APIKey returns the PostgREST API key from the configured environment variable.
func (c *Config) APIKey() string {
	if c.Remote.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Remote.APIKeyEnv)
}
