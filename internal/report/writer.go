package report

import (
	"io"

	"github.com/nao1215/bankrotscan/internal/database"
	"github.com/nao1215/bankrotscan/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the summary of one run.
	Write(run *model.Run) (int, error)

	// WriteHistory outputs past runs from the ledger.
	WriteHistory(history *History) (int, error)
}

// History is the ledger view shown by the history command.
type History struct {
	Runs []database.RunSummary `json:"runs"`

	// Totals is optional per-kind record counts.
	Totals map[model.Kind]database.RecordTotals `json:"totals,omitempty"`
}

// MultiWriter writes to multiple Writers simultaneously, e.g. the
// terminal and a report file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to all configured Writers and returns the total
// bytes written. It stops on the first error.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteHistory outputs the history to all configured Writers.
func (m *MultiWriter) WriteHistory(history *History) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteHistory(history)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText is the human-readable run status.
func statusText(status, errMessage string) string {
	switch status {
	case "failed":
		return "ERROR - " + errMessage
	case "interrupted":
		return "INTERRUPTED (partial results)"
	default:
		return "Complete"
	}
}

// kindsOf returns the kinds present in stats, in canonical order.
func kindsOf(stats map[model.Kind]*model.KindStats) []model.Kind {
	kinds := make([]model.Kind, 0, len(stats))
	for _, k := range model.AllKinds {
		if _, ok := stats[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// sumStats adds up added and skipped rows of a stored run.
func sumStats(stats map[model.Kind]*model.KindStats) (added, skipped int) {
	for _, s := range stats {
		if s == nil {
			continue
		}
		added += s.Added
		skipped += s.Skipped
	}
	return added, skipped
}

// shortID trims a run ID for tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
