package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazuruo/flowdex/internal/logging"
	"github.com/chazuruo/flowdex/internal/tables/sqlstore"
)

// MigrateOptions contains the options for the migrate command.
type MigrateOptions struct {
	Global GlobalOptions
	DBPath string
	Out    io.Writer
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the sqlite catalog schema",
		Long: `Apply pending schema migrations to the sqlite database and print
the resulting schema version. The database file is created if needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Global = CurrentGlobals()
			opts.Out = cmd.OutOrStdout()
			return runMigrate(commandContext(cmd), opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "sqlite database path (default: database.path)")

	return cmd
}

func runMigrate(ctx context.Context, opts *MigrateOptions) error {
	cfg, err := loadConfig(opts.Global)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}

	store, err := sqlstore.Open(ctx, dbPath, sqlstore.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	version, err := store.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	fmt.Fprintf(opts.Out, "%s is at schema version %d\n", dbPath, version)
	return nil
}
