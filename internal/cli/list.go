package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazuruo/flowdex/internal/catalog"
)

// ListOptions contains the options for the list command.
type ListOptions struct {
	Global   GlobalOptions
	Category string
	Filter   string
	Format   string
	Out      io.Writer
}

// NewListCommand creates the list command for listing workflows.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list [category]",
		Short: "List workflows, optionally within one category",
		Long: `List the workflows in the catalog.

With a category argument (id or name, case-insensitive) only that
category's workflows are listed. --filter narrows the list to workflows
whose name or file name contains the term.

Examples:
  flowdex list                        # every workflow
  flowdex list ai-ml                  # one category by id
  flowdex list "AI & ML" --filter bot # filtered by name
  flowdex list --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Category = args[0]
			}
			opts.Global = CurrentGlobals()
			opts.Out = cmd.OutOrStdout()
			return runList(commandContext(cmd), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only show workflows whose name or file name contains this term")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json, yaml, plain)")

	return cmd
}

func runList(ctx context.Context, opts *ListOptions) error {
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

	title := "All workflows"
	workflows := snap.Workflows
	if opts.Category != "" {
		cat, ok := catalog.FindCategory(snap.Categories, opts.Category)
		if !ok {
			return fmt.Errorf("category not found: %s", opts.Category)
		}
		title = cat.Icon + " " + cat.Name
		workflows = cat.Workflows
	}
	workflows = catalog.Filter(workflows, opts.Filter)

	w := opts.Out
	switch format {
	case FormatJSON:
		return writeJSON(w, workflows)
	case FormatYAML:
		return writeYAML(w, workflows)
	case FormatPlain:
		for _, wf := range workflows {
			fmt.Fprintf(w, "%s\t%s\t%s\n", wf.ID, wf.Name, wf.Category)
		}
		return nil
	}

	printWorkflowTable(w, title, workflows)
	return nil
}

func printWorkflowTable(w io.Writer, title string, workflows []catalog.WorkflowFile) {
	if len(workflows) == 0 {
		fmt.Fprintln(w, "No workflows found.")
		return
	}

	fmt.Fprintln(w, heading(fmt.Sprintf("%s (%d)", title, len(workflows))))
	fmt.Fprintln(w, muted(formatTypeCounts(catalog.CountByType(workflows))))
	fmt.Fprintln(w)

	tbl := newTable(w, "ID", "NAME", "CATEGORY", "TYPE", "COMPLEXITY", "NODES")
	for _, wf := range workflows {
		tbl.AddRow(wf.ID, wf.Name, wf.Category, wf.Type, wf.Complexity, wf.NodeCount)
	}
	tbl.Print()
}

// formatTypeCounts renders per-type counts as "json: 3, txt: 1".
func formatTypeCounts(counts map[string]int) string {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s: %d", t, counts[t]))
	}
	return strings.Join(parts, ", ")
}
