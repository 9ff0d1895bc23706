package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/bankrotscan/internal/model"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs human-readable text for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds run ID details and performed steps.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "BANKROTSCAN RUN SUMMARY")

	if w.verbose {
		fmt.Fprintf(&sb, "Run ID:    %s\n", run.ID)
	}
	fmt.Fprintf(&sb, "Started:   %s\n", run.StartedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Duration:  %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "Output:    %s\n", run.Output)
	fmt.Fprintf(&sb, "Status:    %s\n", statusText(run.Status(), run.ErrorMessage))
	sb.WriteString("\n")

	writeSection(&sb, "RECORDS")
	fmt.Fprintf(&sb, "  %-16s %6s %7s %9s %7s %7s %8s %6s %8s\n",
		"SHEET", "PAGES", "LISTED", "ENRICHED", "FAILED", "ADDED", "SKIPPED", "NEW", "CHANGED")
	for _, kind := range kindsOf(run.Stats) {
		s := run.Stats[kind]
		fmt.Fprintf(&sb, "  %-16s %6d %7d %9d %7d %7d %8d %6d %8d\n",
			kind.Sheet(), s.Pages, s.Listed, s.Enriched, s.FailedSteps,
			s.Added, s.Skipped, s.LedgerNew, s.LedgerChange)
	}
	added, skipped := run.Totals()
	fmt.Fprintf(&sb, "\n  Added %d row(s), skipped %d duplicate(s)\n\n", added, skipped)

	if w.verbose && len(run.PerformedSteps) > 0 {
		fmt.Fprintf(&sb, "Steps: %s\n\n", strings.Join(run.PerformedSteps, " -> "))
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs the run history as a table.
func (w *SimpleWriter) WriteHistory(history *History) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "BANKROTSCAN RUN HISTORY")

	if len(history.Runs) == 0 {
		sb.WriteString("No runs recorded yet.\n\n")
	} else {
		fmt.Fprintf(&sb, "  %-8s  %-23s  %-11s  %6s  %7s  %s\n", "RUN", "STARTED", "STATUS", "ADDED", "SKIPPED", "OUTPUT")
		for _, r := range history.Runs {
			added, skipped := sumStats(r.Stats)
			fmt.Fprintf(&sb, "  %-8s  %-23s  %-11s  %6d  %7d  %s\n",
				shortID(r.ID), r.StartedAt.Format(timeLayout), r.Status, added, skipped, r.Output)
			if r.Error != "" {
				fmt.Fprintf(&sb, "            error: %s\n", r.Error)
			}
		}
		sb.WriteString("\n")
	}

	if len(history.Totals) > 0 {
		writeSection(&sb, "RECORDS IN LEDGER")
		for _, kind := range model.AllKinds {
			t, ok := history.Totals[kind]
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "  %-16s %6d record(s), %d changed since first seen\n", kind.Sheet(), t.Records, t.Changed)
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	pad := max((70-len(title))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
