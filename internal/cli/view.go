package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazuruo/flowdex/internal/catalog"
	"github.com/chazuruo/flowdex/internal/download"
)

// ViewOptions contains the options for the view command.
type ViewOptions struct {
	Global     GlobalOptions
	WorkflowID string
	Raw        bool
	Markdown   bool
	Out        io.Writer
}

// NewViewCommand creates the view command.
func NewViewCommand() *cobra.Command {
	opts := &ViewOptions{}

	cmd := &cobra.Command{
		Use:   "view <workflow-id>",
		Short: "View workflow details",
		Long: `Display detailed information about a workflow.

Output formats:
- Default: Formatted display
- --raw: Print the workflow file content, as download would save it
- --md: Print a Markdown summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.WorkflowID = args[0]
			opts.Global = CurrentGlobals()
			opts.Out = cmd.OutOrStdout()
			return runView(commandContext(cmd), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print the workflow file content")
	cmd.Flags().BoolVar(&opts.Markdown, "md", false, "print Markdown")

	return cmd
}

func runView(ctx context.Context, opts *ViewOptions) error {
	s, err := openSession(ctx, opts.Global)
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := s.loadCatalog(ctx)
	if err != nil {
		return err
	}

	wf, cat, ok := catalog.FindWorkflow(snap, opts.WorkflowID)
	if !ok {
		return fmt.Errorf("workflow not found: %s", opts.WorkflowID)
	}

	if opts.Raw {
		resolver, err := download.NewResolver(s.cfg.Download.Root, download.WithLogger(s.logger))
		if err != nil {
			return fmt.Errorf("failed to create resolver: %w", err)
		}
		content, err := resolver.Resolve(*wf, cat)
		if err != nil {
			return err
		}
		_, err = opts.Out.Write(content.Data)
		return err
	}
	if opts.Markdown {
		printWorkflowMarkdown(opts.Out, wf, cat)
		return nil
	}

	printWorkflowFormatted(opts.Out, wf, cat)
	return nil
}

// printWorkflowMarkdown prints a workflow as Markdown.
func printWorkflowMarkdown(w io.Writer, wf *catalog.WorkflowFile, cat *catalog.Category) {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(wf.Name)
	sb.WriteString("\n\n")

	if wf.Description != "" {
		sb.WriteString(wf.Description)
		sb.WriteString("\n\n")
	}

	sb.WriteString(fmt.Sprintf("**Category:** %s %s\n\n", cat.Icon, cat.Name))

	if len(wf.Tags) > 0 {
		sb.WriteString("**Tags:** ")
		sb.WriteString(strings.Join(wf.Tags, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString("| Nodes | Complexity | Type | Size |\n|---|---|---|---|\n")
	sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d |\n", wf.NodeCount, wf.Complexity, wf.Type, wf.FileSize))

	if wf.Path != "" {
		sb.WriteString(fmt.Sprintf("\n`%s`\n", wf.Path))
	}

	fmt.Fprint(w, sb.String())
}

// printWorkflowFormatted prints a workflow in formatted text.
func printWorkflowFormatted(w io.Writer, wf *catalog.WorkflowFile, cat *catalog.Category) {
	fmt.Fprintln(w, heading(wf.Name))
	if wf.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", wf.Description)
	}
	fmt.Fprintf(w, "ID:          %s\n", wf.ID)
	fmt.Fprintf(w, "Category:    %s %s\n", cat.Icon, cat.Name)
	if len(wf.Tags) > 0 {
		fmt.Fprintf(w, "Tags:        %s\n", strings.Join(wf.Tags, ", "))
	}
	fmt.Fprintf(w, "Nodes:       %d (%s)\n", wf.NodeCount, wf.Complexity)
	fmt.Fprintf(w, "Type:        %s\n", wf.Type)
	if wf.Path != "" {
		fmt.Fprintf(w, "Path:        %s\n", wf.Path)
	}
	if wf.FileSize > 0 {
		fmt.Fprintf(w, "Size:        %d bytes\n", wf.FileSize)
	}
	if wf.HasContent() {
		fmt.Fprintln(w, muted("inline content available"))
	}
}
