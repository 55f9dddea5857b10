package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazuruo/flowdex/internal/catalog"
	"github.com/chazuruo/flowdex/internal/download"
)

// DownloadOptions contains the options for the download command.
type DownloadOptions struct {
	Global     GlobalOptions
	WorkflowID string
	Path       string
	Root       string
	OutDir     string
	Stdout     bool
	Out        io.Writer
}

// NewDownloadCommand creates the download command.
func NewDownloadCommand() *cobra.Command {
	opts := &DownloadOptions{}

	cmd := &cobra.Command{
		Use:   "download [workflow-id]",
		Short: "Download a workflow file",
		Long: `Resolve a workflow to a file and save it.

The content is taken from, in order:
  1. the workflow's inline JSON, when the catalog row carries it
  2. the file at the workflow's path under the download root
  3. a generated placeholder named after the file

Paths that resolve outside the download root are refused.

Examples:
  flowdex download 42                       # by workflow id
  flowdex download --path /AI_ML/bot.json   # by path, no catalog lookup
  flowdex download 42 --out ./downloads
  flowdex download 42 --stdout`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.WorkflowID = args[0]
			}
			opts.Global = CurrentGlobals()
			opts.Out = cmd.OutOrStdout()
			return runDownload(commandContext(cmd), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "", "download the file at this path instead of a catalog workflow")
	cmd.Flags().StringVar(&opts.Root, "root", "", "directory paths are resolved against (default: download.root)")
	cmd.Flags().StringVar(&opts.OutDir, "out", "", "directory to save into (default: download.output_dir)")
	cmd.Flags().BoolVar(&opts.Stdout, "stdout", false, "write the content to stdout instead of a file")

	return cmd
}

func runDownload(ctx context.Context, opts *DownloadOptions) error {
	if (opts.WorkflowID == "") == (opts.Path == "") {
		return fmt.Errorf("specify either a workflow id or --path")
	}

	s, err := openSession(ctx, opts.Global)
	if err != nil {
		return err
	}
	defer s.Close()

	root := opts.Root
	if root == "" {
		root = s.cfg.Download.Root
	}
	resolver, err := download.NewResolver(root, download.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	var content *download.Content
	if opts.Path != "" {
		content, err = resolver.ResolvePath(opts.Path)
	} else {
		content, err = resolveWorkflow(ctx, s, resolver, opts.WorkflowID)
	}
	if err != nil {
		return err
	}

	if opts.Stdout {
		_, err := opts.Out.Write(content.Data)
		return err
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = s.cfg.Download.OutputDir
	}
	dest, err := download.Save(outDir, content)
	if err != nil {
		return fmt.Errorf("failed to save download: %w", err)
	}

	s.logger.Debug("download saved",
		zap.String("dest", dest),
		zap.String("source", string(content.Source)),
		zap.Int("bytes", len(content.Data)),
	)
	fmt.Fprintf(opts.Out, "Saved %s (%s, %d bytes)\n", dest, content.Source, len(content.Data))
	return nil
}

func resolveWorkflow(ctx context.Context, s *session, resolver *download.Resolver, id string) (*download.Content, error) {
	snap, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	wf, cat, ok := catalog.FindWorkflow(snap, id)
	if !ok {
		return nil, fmt.Errorf("workflow not found: %s", id)
	}
	return resolver.Resolve(*wf, cat)
}
