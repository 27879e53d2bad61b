package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sha1n/seekql/internal/app"
	"github.com/sha1n/seekql/internal/search"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "seekql"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Execute(ctx, Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(ctx context.Context, version, build, programName string, args []string) error {
	rootCmd := newRootCommand(app.DefaultRunParams(), version, build, programName)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(params app.RunParams, version, build, programName string) *cobra.Command {
	serve := func(cmd *cobra.Command, _ []string) error {
		return app.RunWithDeps(cmd.Context(), params, cmd.Flags(), version)
	}

	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "SeekQL search server",
		Long:         "SeekQL indexes SQL files from local directories and serves full-text search over HTTP and MCP",
		Version:      version,
		SilenceUsage: true,
		RunE:         serve,
	}
	rootCmd.SetVersionTemplate(`{{.Version}} (build ` + build + `)
`)
	app.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the REST API and MCP tools (default)",
			Args:  cobra.NoArgs,
			RunE:  serve,
		},
		newIndexCommand(params),
		newSearchCommand(params),
		&cobra.Command{
			Use:   "status",
			Short: "Show document count and the last indexing run",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.RunStatus(cmd.Context(), params, cmd.Flags(), cmd.OutOrStdout())
			},
		},
	)

	return rootCmd
}

func newIndexCommand(params app.RunParams) *cobra.Command {
	var opts app.IndexOptions
	cmd := &cobra.Command{
		Use:   "index [roots...]",
		Short: "Drop and rebuild the index from the configured or given directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Roots = args
			return app.RunIndex(cmd.Context(), params, cmd.Flags(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Only print the final summary")
	return cmd
}

func newSearchCommand(params app.RunParams) *cobra.Command {
	req := search.Request{Highlight: true}
	var noHighlight bool
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the local index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(req.AllOf)+len(req.AnyOf)+len(req.NoneOf) == 0 {
				return errors.New("a query or one of --all-of, --any-of, --none-of is required")
			}
			if len(args) == 1 {
				req.Query = args[0]
			}
			req.Highlight = !noHighlight
			return app.RunSearch(cmd.Context(), params, cmd.Flags(), req, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&req.Limit, "limit", "l", 0, "Maximum number of results")
	cmd.Flags().IntVarP(&req.Offset, "offset", "o", 0, "Number of results to skip")
	cmd.Flags().BoolVar(&noHighlight, "no-highlight", false, "Print snippets without match markers")
	cmd.Flags().StringSliceVar(&req.AllOf, "all-of", nil, "Terms that must all appear")
	cmd.Flags().StringSliceVar(&req.AnyOf, "any-of", nil, "Terms of which at least one must appear")
	cmd.Flags().StringSliceVar(&req.NoneOf, "none-of", nil, "Terms that must not appear")
	return cmd
}
