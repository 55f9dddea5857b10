// Package config provides configuration management for flowdex.
//
// This file contains config loading functionality including:
// - XDG config path detection
// - TOML file parsing
// - Environment variable overrides
// - Validation
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "FLOWDEX_"

// DetectConfigPath searches for a config file using XDG standard paths.
// Returns the first config file found, or empty string if none exists.
//
// Search order:
// 1. $XDG_CONFIG_HOME/flowdex/config.toml
// 2. ~/.config/flowdex/config.toml
func DetectConfigPath() string {
	var candidates []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "flowdex", "config.toml"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "flowdex", "config.toml"))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultConfigPath returns the path `config init` writes to.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "flowdex", "config.toml")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(homeDir, ".config", "flowdex", "config.toml")
}

// Load loads a config from the specified path.
// If the file doesn't exist, returns an error.
// After loading, applies environment variable overrides and validates.
func Load(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &fxerrors.ConfigError{Path: path, Err: fxerrors.ErrNotFound}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &fxerrors.ConfigError{Path: path, Err: fmt.Errorf("read: %w", err)}
	}

	// Start with defaults
	cfg := DefaultConfig()

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &fxerrors.ConfigError{Path: path, Err: fmt.Errorf("parse: %w", err)}
	}

	applyEnvOverrides(cfg)
	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, &fxerrors.ConfigError{Path: path, Err: fxerrors.Mark(err, fxerrors.ErrInvalid)}
	}

	return cfg, nil
}

// LoadWithDefaults loads path when it is set, otherwise the first config
// found in the XDG paths. If no config file exists, defaults are returned
// after environment overrides are applied.
func LoadWithDefaults(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	configPath := DetectConfigPath()
	if configPath == "" {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg)
		expandPaths(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, &fxerrors.ConfigError{Err: fxerrors.Mark(err, fxerrors.ErrInvalid)}
		}
		return cfg, nil
	}

	return Load(configPath)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables follow the pattern: FLOWDEX_<SECTION>_<FIELD>
//
// Examples:
// - FLOWDEX_REMOTE_BACKEND overrides [remote].backend
// - FLOWDEX_DATABASE_PATH overrides [database].path
// - FLOWDEX_LOG_LEVEL overrides [log].level
func applyEnvOverrides(c *Config) {
	applyString := func(key string, target *string) {
		if val, ok := os.LookupEnv(EnvPrefix + key); ok && val != "" {
			*target = val
		}
	}

	applyBool := func(key string, target *bool) {
		if val, ok := os.LookupEnv(EnvPrefix + key); ok && val != "" {
			switch strings.ToLower(val) {
			case "true", "1", "yes", "on":
				*target = true
			case "false", "0", "no", "off":
				*target = false
			}
		}
	}

	applyInt := func(key string, target *int) {
		if val, ok := os.LookupEnv(EnvPrefix + key); ok && val != "" {
			var i int
			if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
				*target = i
			}
		}
	}

	applyDuration := func(key string, target *Duration) {
		if val, ok := os.LookupEnv(EnvPrefix + key); ok && val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				target.Duration = d
			}
		}
	}

	// Remote section
	applyString("REMOTE_BACKEND", &c.Remote.Backend)
	applyString("REMOTE_URL", &c.Remote.URL)
	applyString("REMOTE_API_KEY_ENV", &c.Remote.APIKeyEnv)
	applyDuration("REMOTE_TIMEOUT", &c.Remote.Timeout)
	applyInt("REMOTE_MAX_RETRIES", &c.Remote.MaxRetries)

	// Database section
	applyString("DATABASE_PATH", &c.Database.Path)

	// Catalog section
	applyString("CATALOG_FALLBACK_CATEGORY", &c.Catalog.FallbackCategory)
	applyInt("CATALOG_MEDIUM_THRESHOLD", &c.Catalog.MediumThreshold)
	applyInt("CATALOG_COMPLEX_THRESHOLD", &c.Catalog.ComplexThreshold)
	applyDuration("CATALOG_FETCH_TIMEOUT", &c.Catalog.FetchTimeout)
	applyBool("CATALOG_ACTIVE_ONLY", &c.Catalog.ActiveOnly)

	// Download section
	applyString("DOWNLOAD_ROOT", &c.Download.Root)
	applyString("DOWNLOAD_OUTPUT_DIR", &c.Download.OutputDir)

	// Index section
	applyInt("INDEX_BATCH_SIZE", &c.Index.BatchSize)

	// Log section
	applyString("LOG_LEVEL", &c.Log.Level)
	applyString("LOG_FORMAT", &c.Log.Format)
	applyString("LOG_FILE", &c.Log.File)
}

// expandPaths expands ~ to the home directory in path-valued fields.
func expandPaths(c *Config) {
	c.Database.Path = expandHome(c.Database.Path)
	c.Download.Root = expandHome(c.Download.Root)
	c.Download.OutputDir = expandHome(c.Download.OutputDir)
	c.Log.File = expandHome(c.Log.File)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(homeDir, strings.TrimPrefix(strings.TrimPrefix(p, "~"), "/"))
}
