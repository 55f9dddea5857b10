package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazuruo/flowdex/internal/config"
	"github.com/chazuruo/flowdex/internal/tables"
)

// StatusOptions contains the options for the status command.
type StatusOptions struct {
	Global GlobalOptions
	JSON   bool
	Out    io.Writer
}

// StatusInfo is the JSON output of the status command.
type StatusInfo struct {
	Backend       string             `json:"backend"`
	Endpoint      string             `json:"endpoint"`
	Categories    int                `json:"categories"`
	Workflows     int                `json:"workflows"`
	Tags          int                `json:"tags"`
	LastSync      *tables.SyncLogRow `json:"last_sync,omitempty"`
	CatalogError  string             `json:"catalog_error,omitempty"`
	DownloadRoot  string             `json:"download_root"`
	OutputDir     string             `json:"output_dir"`
	FallbackGroup string             `json:"fallback_category"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	opts := &StatusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend and catalog status",
		Long: `Display the configured table store and a summary of the catalog.

Shows:
- Backend and endpoint (database file or URL)
- Category, workflow and tag counts
- The most recent index run from sync_logs
- Download root and output directory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Global = CurrentGlobals()
			opts.Out = cmd.OutOrStdout()
			return runStatus(commandContext(cmd), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output in JSON format")

	return cmd
}

func runStatus(ctx context.Context, opts *StatusOptions) error {
	s, err := openSession(ctx, opts.Global)
	if err != nil {
		return err
	}
	defer s.Close()

	info := StatusInfo{
		Backend:       s.cfg.Remote.Backend,
		Endpoint:      endpoint(s.cfg),
		DownloadRoot:  s.cfg.Download.Root,
		OutputDir:     s.cfg.Download.OutputDir,
		FallbackGroup: s.cfg.Catalog.FallbackCategory,
	}

	// A broken catalog is reported, not fatal.
	if snap, err := s.loadCatalog(ctx); err != nil {
		info.CatalogError = err.Error()
	} else {
		info.Categories = len(snap.Categories)
		info.Workflows = snap.Total()
		info.Tags = len(snap.Tags)
	}

	info.LastSync = lastSync(ctx, s)

	if opts.JSON {
		return writeJSON(opts.Out, info)
	}

	w := opts.Out
	fmt.Fprintln(w, heading("flowdex status"))
	fmt.Fprintf(w, "  backend:     %s (%s)\n", info.Backend, info.Endpoint)
	if info.CatalogError != "" {
		fmt.Fprintf(w, "  catalog:     unavailable: %s\n", info.CatalogError)
	} else {
		fmt.Fprintf(w, "  catalog:     %d workflows in %d categories, %d tags\n",
			info.Workflows, info.Categories, info.Tags)
	}
	if info.LastSync != nil {
		fmt.Fprintf(w, "  last index:  %s %s (%d files)\n",
			info.LastSync.Status, info.LastSync.FilePath, info.LastSync.FilesProcessed.Int())
	} else {
		fmt.Fprintf(w, "  last index:  %s\n", muted("never"))
	}
	fmt.Fprintf(w, "  downloads:   %s -> %s\n", info.DownloadRoot, info.OutputDir)
	return nil
}

func endpoint(cfg *config.Config) string {
	switch cfg.Remote.Backend {
	case config.BackendSQLite:
		return cfg.Database.Path
	case config.BackendPostgREST:
		return cfg.Remote.URL
	default:
		return "in-memory"
	}
}

// lastSync returns the newest sync_logs row, or nil when there is none or
// the table cannot be read.
func lastSync(ctx context.Context, s *session) *tables.SyncLogRow {
	records, err := s.client.Select(ctx, tables.Query{
		Table:      tables.TableSyncLogs,
		OrderBy:    "id",
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return nil
	}
	rows, _ := tables.Decode[tables.SyncLogRow](records)
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}
