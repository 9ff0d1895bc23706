package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/bankrotscan/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	// version is stamped into run reports.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the program version included in run reports.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a run with output-only fields.
type JSONReport struct {
	Version  string     `json:"version,omitempty"`
	Status   string     `json:"status"`
	Duration string     `json:"duration"`
	Added    int        `json:"added"`
	Skipped  int        `json:"skipped"`
	Run      *model.Run `json:"run"`
}

// NewJSONReport builds the JSON view of run.
func NewJSONReport(run *model.Run, version string) *JSONReport {
	added, skipped := run.Totals()
	return &JSONReport{
		Version:  version,
		Status:   run.Status(),
		Duration: run.Duration().String(),
		Added:    added,
		Skipped:  skipped,
		Run:      run,
	}
}

// Write outputs the run summary in JSON format.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	return w.writeJSON(NewJSONReport(run, w.version))
}

// WriteHistory outputs the run history in JSON format.
func (w *JSONWriter) WriteHistory(history *History) (int, error) {
	return w.writeJSON(history)
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
