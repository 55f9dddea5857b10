package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazuruo/flowdex/internal/catalog"
)

// SearchOptions contains the options for the search command.
type SearchOptions struct {
	Global GlobalOptions
	Query  string
	JSON   bool
	Out    io.Writer
}

// searchHit is the JSON form of one search result.
type searchHit struct {
	CategoryID   string               `json:"categoryId"`
	CategoryName string               `json:"categoryName"`
	Workflow     catalog.WorkflowFile `json:"workflow"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	opts := &SearchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search workflows by name, description, tag or category",
		Long: `Search the catalog for workflows.

A workflow matches when its name, description or one of its tags
contains the query, case-insensitively. Every workflow in a category
whose name contains the query matches as well.

Use --json for structured output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Query = args[0]
			opts.Global = CurrentGlobals()
			opts.Out = cmd.OutOrStdout()
			return runSearch(commandContext(cmd), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, opts *SearchOptions) error {
	if strings.TrimSpace(opts.Query) == "" {
		return fmt.Errorf("search query cannot be empty")
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

	results := catalog.Search(snap.Categories, opts.Query)

	if opts.JSON {
		hits := make([]searchHit, 0, len(results))
		for _, r := range results {
			hits = append(hits, searchHit{
				CategoryID:   r.Category.ID,
				CategoryName: r.Category.Name,
				Workflow:     *r.Workflow,
			})
		}
		return writeJSON(opts.Out, hits)
	}

	w := opts.Out
	if len(results) == 0 {
		fmt.Fprintf(w, "No workflows match %q.\n", opts.Query)
		return nil
	}

	fmt.Fprintln(w, heading(fmt.Sprintf("%d results for %q", len(results), opts.Query)))
	fmt.Fprintln(w)

	tbl := newTable(w, "ID", "NAME", "CATEGORY", "TAGS")
	for _, r := range results {
		tbl.AddRow(r.Workflow.ID, r.Workflow.Name, r.Category.Name, strings.Join(r.Workflow.Tags, ", "))
	}
	tbl.Print()
	return nil
}
