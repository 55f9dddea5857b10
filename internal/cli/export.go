package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazuruo/flowdex/internal/catalog"
	"github.com/chazuruo/flowdex/internal/export"
)

// ExportOptions contains the options for the export command.
type ExportOptions struct {
	Global         GlobalOptions
	Category       string
	Format         string
	OutPath        string
	CustomTemplate string
	Out            io.Writer
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export [category]",
		Short: "Export the catalog as Markdown, YAML or JSON",
		Long: `Export the whole catalog, or one category, to a document.

Supported formats:
- md (default): a Markdown index with one table per category
- yaml: the catalog snapshot as YAML
- json: the catalog snapshot as JSON

Template locations for md (searched in order):
1. the --template path as given
2. ~/.config/flowdex/templates/<name>
3. Built-in template

Examples:
  flowdex export                          # Markdown to stdout
  flowdex export --format json --out catalog.json
  flowdex export ai-ml --format yaml
  flowdex export --template catalog.tmpl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Category = args[0]
			}
			opts.Global = CurrentGlobals()
			opts.Out = cmd.OutOrStdout()
			return runExport(commandContext(cmd), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "md", "output format (md, yaml, json)")
	cmd.Flags().StringVarP(&opts.OutPath, "out", "o", "-", "output path (default: stdout)")
	cmd.Flags().StringVarP(&opts.CustomTemplate, "template", "t", "", "custom template file (md only)")

	return cmd
}

func runExport(ctx context.Context, opts *ExportOptions) error {
	exporter, err := export.NewExporter(export.Options{
		Format:         export.Format(opts.Format),
		CustomTemplate: opts.CustomTemplate,
	})
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	s, err := openSession(ctx, opts.Global)
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := s.loadCatalog(ctx)
	if err != nil {
		return err
	}

	if opts.Category != "" {
		cat, ok := catalog.FindCategory(snap.Categories, opts.Category)
		if !ok {
			return fmt.Errorf("category not found: %s", opts.Category)
		}
		snap = &catalog.Snapshot{
			Categories: []catalog.Category{*cat},
			Workflows:  cat.Workflows,
			Tags:       snap.Tags,
		}
	}

	if opts.OutPath == "" || opts.OutPath == "-" {
		output, err := exporter.Export(snap)
		if err != nil {
			return fmt.Errorf("failed to export catalog: %w", err)
		}
		_, err = opts.Out.Write(output)
		return err
	}

	if err := exporter.ExportToFile(snap, opts.OutPath); err != nil {
		return fmt.Errorf("failed to export catalog: %w", err)
	}
	fmt.Fprintf(opts.Out, "Exported %d workflows to: %s\n", snap.Total(), opts.OutPath)
	return nil
}
