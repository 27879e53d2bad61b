package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/sha1n/seekql/internal/jobs"
	"github.com/sha1n/seekql/internal/search"
)

// withServices runs fn against freshly created services and closes them afterwards
func withServices(ctx context.Context, params RunParams, flags *pflag.FlagSet, fn func(*Services) error) error {
	_, svc, err := setup(ctx, params, flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close services", "error", err)
		}
	}()
	return fn(svc)
}

// IndexOptions configures RunIndex
type IndexOptions struct {
	// Roots overrides the configured sql_source_paths when not empty
	Roots []string
	// Quiet suppresses phase transitions
	Quiet bool
}

// RunIndex rebuilds the index in-process and reports the outcome. The run
// belongs to this process, so RunIndex always waits for it to finish.
func RunIndex(ctx context.Context, params RunParams, flags *pflag.FlagSet, opts IndexOptions, out io.Writer) error {
	return withServices(ctx, params, flags, func(svc *Services) error {
		st := stylesFor(out)

		updates, cancel := svc.Jobs.Subscribe()
		defer cancel()

		res, err := svc.Jobs.Start(ctx, opts.Roots)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", st.Header.Render("Indexing started"), st.Dim.Render(res.RunID))

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case status, ok := <-updates:
				if !ok {
					return jobs.ErrClosed
				}
				if !opts.Quiet {
					printPhase(out, st, status)
				}
				if !status.Phase.Terminal() {
					continue
				}
				printResult(out, st, status)
				if status.Phase == jobs.PhaseError {
					return fmt.Errorf("indexing failed: %s", firstLine(status.LastError))
				}
				return nil
			}
		}
	})
}

// RunSearch runs one query against the local index and prints the hits.
// Unless req.Style is set, matches are highlighted with ANSI escapes on a
// terminal and with <mark> tags otherwise.
func RunSearch(ctx context.Context, params RunParams, flags *pflag.FlagSet, req search.Request, out io.Writer) error {
	return withServices(ctx, params, flags, func(svc *Services) error {
		if req.Highlight && req.Style == "" {
			req.Style = search.HighlightHTML
			if IsTTY(out) {
				req.Style = search.HighlightANSI
			}
		}

		resp, err := svc.Search.Search(ctx, req)
		if err != nil {
			return err
		}
		printResults(out, stylesFor(out), resp, req.Offset)
		return nil
	})
}

// RunStatus prints index bookkeeping: document count, creation and reset
// times, configured roots and the outcome of the last run.
func RunStatus(ctx context.Context, params RunParams, flags *pflag.FlagSet, out io.Writer) error {
	return withServices(ctx, params, flags, func(svc *Services) error {
		count, err := svc.Search.DocCount(ctx)
		if err != nil {
			return fmt.Errorf("failed to count documents: %w", err)
		}
		printIndexInfo(out, stylesFor(out), svc.Manifest.Snapshot(), count, svc.Sources.Path(), svc.Sources.Roots())
		return nil
	})
}
