// Package cli provides tests for CLI commands.
package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/chazuruo/flowdex/internal/config"
	"github.com/chazuruo/flowdex/internal/tables/sqlstore"
	"github.com/chazuruo/flowdex/internal/testutil"
)

// testEnv is a config file backed by a sqlite database in a temp dir.
type testEnv struct {
	global GlobalOptions
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Remote.Backend = config.BackendSQLite
	cfg.Database.Path = filepath.Join(dir, "catalog.db")
	cfg.Download.Root = filepath.Join(dir, "workflows")
	cfg.Download.OutputDir = filepath.Join(dir, "out")
	cfg.Log.Level = "error"

	configPath := filepath.Join(dir, "config.toml")
	if err := config.Write(configPath, cfg); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return &testEnv{global: GlobalOptions{ConfigPath: configPath}, cfg: cfg}
}

// seed inserts the testutil catalog into the env's database.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()

	store, err := sqlstore.Open(context.Background(), e.cfg.Database.Path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	testutil.SeedCatalog(t, store)
}

func newSeededEnv(t *testing.T) *testEnv {
	t.Helper()
	e := newTestEnv(t)
	e.seed(t)
	return e
}

// output is a buffer for command output.
func output() *bytes.Buffer {
	return &bytes.Buffer{}
}
