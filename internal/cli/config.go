package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/chazuruo/flowdex/internal/config"
)

// ConfigInitOptions contains the options for the config init command.
type ConfigInitOptions struct {
	Global    GlobalOptions
	Path      string
	Force     bool
	URL       string
	APIKeyEnv string
	Database  string
	Root      string
	Out       io.Writer
}

// ConfigShowOptions contains the options for the config show command.
type ConfigShowOptions struct {
	Global GlobalOptions
	Format string
	Out    io.Writer
}

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the flowdex configuration file",
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	opts := &ConfigInitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Long: `Write a TOML config file populated with defaults.

The file is written to --config when given, otherwise to
$XDG_CONFIG_HOME/flowdex/config.toml. An existing file is only
replaced with --force.

Examples:
  flowdex config init
  flowdex config init --backend postgrest --url https://xyz.supabase.co
  flowdex config init --backend sqlite --database ./catalog.db --root ./workflows`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Global = CurrentGlobals()
			opts.Path = opts.Global.ConfigPath
			opts.Out = cmd.OutOrStdout()
			return runConfigInit(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&opts.URL, "url", "", "PostgREST base URL")
	cmd.Flags().StringVar(&opts.APIKeyEnv, "api-key-env", "", "environment variable holding the API key")
	cmd.Flags().StringVar(&opts.Database, "database", "", "sqlite database path")
	cmd.Flags().StringVar(&opts.Root, "root", "", "download root directory")

	return cmd
}

func runConfigInit(opts *ConfigInitOptions) error {
	path := opts.Path
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !opts.Force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if opts.Global.Backend != "" {
		cfg.Remote.Backend = opts.Global.Backend
	}
	if opts.Global.LogLevel != "" {
		cfg.Log.Level = opts.Global.LogLevel
	}
	if opts.Global.LogFormat != "" {
		cfg.Log.Format = opts.Global.LogFormat
	}
	if opts.URL != "" {
		cfg.Remote.URL = opts.URL
	}
	if opts.APIKeyEnv != "" {
		cfg.Remote.APIKeyEnv = opts.APIKeyEnv
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Root != "" {
		cfg.Download.Root = opts.Root
	}

	if err := config.Write(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(opts.Out, "Wrote config to %s\n", path)
	return nil
}

func newConfigShowCommand() *cobra.Command {
	opts := &ConfigShowOptions{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, environment overrides
(FLOWDEX_<SECTION>_<FIELD>) and global flags are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Global = CurrentGlobals()
			opts.Out = cmd.OutOrStdout()
			return runConfigShow(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "toml", "output format (toml, json)")

	return cmd
}

func runConfigShow(opts *ConfigShowOptions) error {
	cfg, err := loadConfig(opts.Global)
	if err != nil {
		return err
	}

	switch opts.Format {
	case "toml":
		if err := toml.NewEncoder(opts.Out).Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return nil
	case "json":
		return writeJSON(opts.Out, cfg)
	default:
		return fmt.Errorf("invalid format: %s (must be toml or json)", opts.Format)
	}
}
