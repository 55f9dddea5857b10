package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that default values are correctly set.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"remote.backend", cfg.Remote.Backend, BackendSQLite},
		{"remote.api_key_env", cfg.Remote.APIKeyEnv, "SUPABASE_ANON_KEY"},
		{"remote.timeout", cfg.Remote.Timeout.Duration, 10 * time.Second},
		{"remote.max_retries", cfg.Remote.MaxRetries, 1},
		{"database.path", cfg.Database.Path, filepath.Join(homeDir, ".local", "share", "flowdex", "catalog.db")},
		{"catalog.fallback_category", cfg.Catalog.FallbackCategory, "Other"},
		{"catalog.medium_threshold", cfg.Catalog.MediumThreshold, 10},
		{"catalog.complex_threshold", cfg.Catalog.ComplexThreshold, 20},
		{"catalog.fetch_timeout", cfg.Catalog.FetchTimeout.Duration, 15 * time.Second},
		{"catalog.active_only", cfg.Catalog.ActiveOnly, true},
		{"download.root", cfg.Download.Root, "."},
		{"download.output_dir", cfg.Download.OutputDir, "."},
		{"index.max_inline_bytes", cfg.Index.MaxInlineBytes, int64(1 << 20)},
		{"index.batch_size", cfg.Index.BatchSize, 100},
		{"log.level", cfg.Log.Level, "info"},
		{"log.format", cfg.Log.Format, "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

// TestValidate covers the validation rules section by section.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Remote.Backend = "mysql" },
			wantErr: "remote.backend",
		},
		{
			name: "postgrest without url",
			mutate: func(c *Config) {
				c.Remote.Backend = BackendPostgREST
				c.Remote.URL = ""
			},
			wantErr: "remote.url",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Remote.Timeout = Duration{} },
			wantErr: "remote.timeout",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Remote.MaxRetries = -1 },
			wantErr: "remote.max_retries",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "empty fallback category",
			mutate:  func(c *Config) { c.Catalog.FallbackCategory = "" },
			wantErr: "catalog.fallback_category",
		},
		{
			name: "thresholds out of order",
			mutate: func(c *Config) {
				c.Catalog.MediumThreshold = 20
				c.Catalog.ComplexThreshold = 10
			},
			wantErr: "catalog.complex_threshold",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Index.BatchSize = 0 },
			wantErr: "index.batch_size",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: "log.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name: "memory backend needs no database path",
			mutate: func(c *Config) {
				c.Remote.Backend = BackendMemory
				c.Database.Path = ""
			},
		},
		{
			name: "postgrest fully configured",
			mutate: func(c *Config) {
				c.Remote.Backend = BackendPostgREST
				c.Remote.URL = "https://example.supabase.co"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestAPIKey reads the key from the configured variable.
func TestAPIKey(t *testing.T) {
	t.Setenv("FLOWDEX_TEST_KEY", "secret")

	cfg := DefaultConfig()
	cfg.Remote.APIKeyEnv = "FLOWDEX_TEST_KEY"
	if got := cfg.APIKey(); got != "secret" {
		t.Errorf("APIKey() = %q, want %q", got, "secret")
	}

	cfg.Remote.APIKeyEnv = ""
	if got := cfg.APIKey(); got != "" {
		t.Errorf("APIKey() with no env name = %q, want empty", got)
	}
}
