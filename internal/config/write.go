package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
)

const fileHeader = `# flowdex configuration.
# Every key can be overridden with FLOWDEX_<SECTION>_<FIELD>, e.g. FLOWDEX_REMOTE_URL.
# The API key itself is never stored here; remote.api_key_env names the variable holding it.

`

// Write validates cfg and stores it at path as TOML. The file is replaced
// in one rename, so a failed write leaves any previous config intact.
func Write(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return &fxerrors.ConfigError{Path: path, Err: fxerrors.Mark(err, fxerrors.ErrInvalid)}
	}

	buf := bytes.NewBufferString(fileHeader)
	if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
