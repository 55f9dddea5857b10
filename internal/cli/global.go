// Package cli provides global state and utilities for CLI commands.
package cli

import (
	"context"
	"sync"

	"github.com/spf13/cobra"
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Backend    string
	LogLevel   string
	LogFormat  string
}

var (
	// globals is filled by the persistent flags on the root command.
	globals GlobalOptions

	// globalsMutex protects globals for concurrent access.
	globalsMutex sync.RWMutex
)

// AddGlobalFlags adds global flags to a command.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "",
		"config file path (default: $XDG_CONFIG_HOME/flowdex/config.toml)")
	cmd.PersistentFlags().StringVar(&globals.Backend, "backend", "",
		"table store backend (memory, sqlite, postgrest); memory indexes download.root per command and keeps nothing; overrides remote.backend")
	cmd.PersistentFlags().StringVar(&globals.LogLevel, "log-level", "",
		"log level (debug, info, warn, error); overrides log.level")
	cmd.PersistentFlags().StringVar(&globals.LogFormat, "log-format", "",
		"log format (console, json); overrides log.format")
}

// CurrentGlobals returns a copy of the global flag values.
func CurrentGlobals() GlobalOptions {
	globalsMutex.RLock()
	defer globalsMutex.RUnlock()
	return globals
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
