package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
)

// DiffResult holds the result of a unified diff computation.
type DiffResult struct {
	Unified        string
	HasDifferences bool
	OldLabel       string
	NewLabel       string
}

// DiffOptions configures diff computation.
type DiffOptions struct {
	OldLabel string
	NewLabel string
	Context  int
}

// DefaultDiffOptions returns the labels used by `buildwatch config --diff`.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{
		OldLabel: "defaults",
		NewLabel: "effective",
		Context:  3,
	}
}

// ComputeDiff computes a unified diff between two text documents.
func ComputeDiff(oldDoc, newDoc string, opts DiffOptions) (*DiffResult, error) {
	diff := difflib.UnifiedDiff{
		A:        splitLines(oldDoc),
		B:        splitLines(newDoc),
		FromFile: opts.OldLabel,
		ToFile:   opts.NewLabel,
		Context:  opts.Context,
	}

	unified, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	return &DiffResult{
		Unified:        unified,
		HasDifferences: unified != "",
		OldLabel:       opts.OldLabel,
		NewLabel:       opts.NewLabel,
	}, nil
}

var (
	diffHeader  = color.New(color.Bold)
	diffHunk    = color.New(color.FgCyan)
	diffRemoved = color.New(color.FgRed)
	diffAdded   = color.New(color.FgGreen)
)

// WriteDiff writes a formatted diff to w, colored when useColor is set.
func WriteDiff(w io.Writer, result *DiffResult, useColor bool) {
	if !result.HasDifferences {
		_, _ = fmt.Fprintln(w, "No differences found.")
		return
	}

	for _, line := range strings.Split(strings.TrimSuffix(result.Unified, "\n"), "\n") {
		if !useColor {
			_, _ = fmt.Fprintln(w, line)
			continue
		}

		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			_, _ = diffHeader.Fprintln(w, line)
		case strings.HasPrefix(line, "@@"):
			_, _ = diffHunk.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			_, _ = diffRemoved.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			_, _ = diffAdded.Fprintln(w, line)
		default:
			_, _ = fmt.Fprintln(w, line)
		}
	}
}

// splitLines splits a string into lines for diff processing.
// Each element includes a trailing newline for difflib compatibility.
func splitLines(s string) []string {
	if s == "" {
		return []string{""}
	}

	return strings.SplitAfter(s, "\n")
}
