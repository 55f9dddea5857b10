package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazuruo/flowdex/internal/catalog"
)

// CategoriesOptions contains the options for the categories command.
type CategoriesOptions struct {
	Global GlobalOptions
	Format string
	Out    io.Writer
}

// categorySummary is the serialized form of one category row.
type categorySummary struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Icon          string `json:"icon" yaml:"icon"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	WorkflowCount int    `json:"workflowCount" yaml:"workflowCount"`
}

// NewCategoriesCommand creates the categories command.
func NewCategoriesCommand() *cobra.Command {
	opts := &CategoriesOptions{}

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List catalog categories with workflow counts",
		Long: `Load the catalog and list every category with the number of
workflows filed under it.

Workflows whose category cannot be resolved are listed under the
fallback category (catalog.fallback_category, "Other" by default).

Examples:
  flowdex categories
  flowdex categories --format json
  flowdex categories --backend postgrest --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Global = CurrentGlobals()
			opts.Out = cmd.OutOrStdout()
			return runCategories(commandContext(cmd), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json, yaml, plain)")

	return cmd
}

func runCategories(ctx context.Context, opts *CategoriesOptions) error {
	format, err := parseFormat(opts.Format)
	if err != nil {
		return err
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

	summaries := make([]categorySummary, 0, len(snap.Categories))
	for _, c := range snap.Categories {
		summaries = append(summaries, categorySummary{
			ID:            c.ID,
			Name:          c.Name,
			Icon:          c.Icon,
			Description:   c.Description,
			WorkflowCount: c.WorkflowCount,
		})
	}

	w := opts.Out
	switch format {
	case FormatJSON:
		return writeJSON(w, summaries)
	case FormatYAML:
		return writeYAML(w, summaries)
	case FormatPlain:
		for _, c := range summaries {
			fmt.Fprintf(w, "%s\t%d\n", c.Name, c.WorkflowCount)
		}
		return nil
	}

	printCategoriesTable(w, snap)
	return nil
}

func printCategoriesTable(w io.Writer, snap *catalog.Snapshot) {
	if len(snap.Categories) == 0 {
		fmt.Fprintln(w, "No categories found.")
		return
	}

	fmt.Fprintln(w, heading(fmt.Sprintf("%d workflows in %d categories", snap.Total(), len(snap.Categories))))
	fmt.Fprintln(w)

	tbl := newTable(w, "", "CATEGORY", "ID", "WORKFLOWS")
	for _, c := range snap.Categories {
		tbl.AddRow(c.Icon, c.Name, c.ID, c.WorkflowCount)
	}
	tbl.Print()
}
