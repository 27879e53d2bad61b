package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sha1n/seekql/internal/indexer"
	"github.com/sha1n/seekql/internal/jobs"
	"github.com/sha1n/seekql/internal/search"
)

// Terminal palette
const (
	ColorAccent = "39"
	ColorGreen  = "78"
	ColorGray   = "245"
	ColorRed    = "196"
)

// Styles holds the styles used for command output
type Styles struct {
	Header  lipgloss.Style
	Label   lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns styles for terminal output
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns unstyled components for plain output
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
	}
}

// stylesFor picks colored styles only when w is a terminal
func stylesFor(w io.Writer) Styles {
	if IsTTY(w) {
		return DefaultStyles()
	}
	return NoColorStyles()
}

func printResults(w io.Writer, st Styles, resp search.Response, offset int) {
	if resp.Total == 0 {
		fmt.Fprintf(w, "No results found for query: %s\n", resp.Query)
		return
	}

	fmt.Fprintln(w, st.Header.Render(fmt.Sprintf("%d results for '%s'", resp.Total, resp.Query)))
	for i, hit := range resp.Hits {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", st.Label.Render(fmt.Sprintf("%d.", offset+i+1)), st.Header.Render(hit.Path))
		for _, line := range strings.Split(hit.Snippet, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}

	if shown := uint64(offset + len(resp.Hits)); resp.Total > shown {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.Dim.Render(fmt.Sprintf("... and %d more results", resp.Total-shown)))
	}
}

func printPhase(w io.Writer, st Styles, status jobs.Status) {
	style := st.Label
	switch status.Phase {
	case jobs.PhaseDone:
		style = st.Success
	case jobs.PhaseError:
		style = st.Error
	}
	fmt.Fprintf(w, "  %s %s\n", st.Dim.Render(time.Now().Format(time.TimeOnly)), style.Render(string(status.Phase)))
}

func printResult(w io.Writer, st Styles, status jobs.Status) {
	if r := status.LastResult; r != nil {
		fmt.Fprintf(w, "%s %d of %d considered (%d scanned)\n", st.Label.Render("Indexed:"), r.Indexed, r.Considered, r.Scanned)
		if r.Note != "" {
			fmt.Fprintf(w, "%s %s\n", st.Label.Render("Note:"), r.Note)
		}
		for _, item := range r.ErrorItems {
			fmt.Fprintf(w, "  %s\n", st.Error.Render(item))
		}
	}
	if status.LastError != "" {
		fmt.Fprintf(w, "%s\n%s\n", st.Error.Render("Error:"), status.LastError)
	}
}

func printIndexInfo(w io.Writer, st Styles, snap indexer.ManifestSnapshot, docCount uint64, sourcesPath string, roots []string) {
	label := func(name string) string { return st.Label.Render(fmt.Sprintf("%-12s", name)) }

	fmt.Fprintln(w, st.Header.Render("Index "+snap.Name))
	fmt.Fprintf(w, "%s %d\n", label("Documents"), docCount)
	fmt.Fprintf(w, "%s %s\n", label("Created"), formatTime(snap.CreatedAt))
	fmt.Fprintf(w, "%s %s\n", label("Last reset"), formatTime(snap.LastResetAt))
	fmt.Fprintf(w, "%s %s\n", label("Sources"), sourcesPath)
	for _, root := range roots {
		fmt.Fprintf(w, "%s %s\n", label(""), root)
	}

	run := snap.LastRun
	if run == nil {
		fmt.Fprintf(w, "%s %s\n", label("Last run"), st.Dim.Render("never"))
		return
	}
	outcome := st.Success.Render("done")
	if run.Error != "" {
		outcome = st.Error.Render("error")
	}
	fmt.Fprintf(w, "%s %s %s at %s\n", label("Last run"), run.RunID, outcome, run.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "%s %d of %d considered (%d scanned)\n", label("Indexed"), run.Indexed, run.Considered, run.Scanned)
	if run.Error != "" {
		fmt.Fprintf(w, "%s %s\n", label("Error"), firstLine(run.Error))
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
