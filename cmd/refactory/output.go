package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/termfx/refactory/core"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes one line per file, then diffs and a summary.
func printReport(w io.Writer, report *core.Report, root string, showDiff bool) {
	for _, f := range report.Files {
		rel := displayPath(root, f.Path)
		switch f.State {
		case core.StateApplied:
			if !f.Modified {
				fmt.Fprintf(w, "%s %s\n", faint("unchanged"), rel)
				continue
			}
			fmt.Fprintf(w, "%s %s %s\n", green("applied  "), rel, faint(fmt.Sprintf("(%d edits)", len(f.Edits))))
		case core.StateRejected:
			fmt.Fprintf(w, "%s %s: %s\n", red("rejected "), rel, f.Error)
			for _, c := range f.Conflicts {
				fmt.Fprintf(w, "           conflicting %s %s\n", c, faint(c.Origin))
			}
		case core.StateSkipped:
			fmt.Fprintf(w, "%s %s: %s\n", yellow("skipped  "), rel, f.SkipReason)
		default:
			fmt.Fprintf(w, "%-9s %s\n", f.State, rel)
		}
		for _, warning := range f.Warnings {
			fmt.Fprintf(w, "           %s %s\n", yellow("warning:"), warning)
		}
		if f.Declined > 0 {
			fmt.Fprintf(w, "           declined %d edit(s)\n", f.Declined)
		}
	}

	if showDiff {
		for _, f := range report.Files {
			if f.Diff != "" {
				fmt.Fprintln(w)
				printDiff(w, f.Diff)
			}
		}
	}

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "%s %s\n", yellow("warning:"), warning)
	}

	applied, rejected, skipped := report.Counts()
	summary := fmt.Sprintf("%d applied, %d rejected, %d skipped, %d modified", applied, rejected, skipped, report.Modified())
	fmt.Fprintf(w, "\n%s\n", bold(summary))
	switch {
	case report.Cancelled:
		fmt.Fprintln(w, red("run cancelled; remaining files were not edited"))
	case report.DryRun && report.Modified() > 0:
		fmt.Fprintln(w, faint("dry run; pass --apply to write changes"))
	}
	if report.JournalID != "" {
		fmt.Fprintf(w, "journal: %s\n", report.JournalID)
	}
}

func printDiff(w io.Writer, diff string) {
	for line := range strings.Lines(diff) {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(w, bold(line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(w, green(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(w, red(line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprint(w, cyan(line))
		default:
			fmt.Fprint(w, line)
		}
	}
}

func displayPath(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func firstLine(text string) string {
	line, _, cut := strings.Cut(text, "\n")
	if cut {
		return line + " …"
	}
	return line
}
