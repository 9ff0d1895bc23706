package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/bankrotscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, built with the
// nao1215/markdown fluent API.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Bankrotscan Run")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + run.ID + "`"},
			{"Started", run.StartedAt.Format(timeLayout)},
			{"Duration", run.Duration().Round(time.Millisecond).String()},
			{"Output", "`" + run.Output + "`"},
			{"Status", markdownStatus(run.Status(), run.ErrorMessage)},
		},
	})
	md.PlainText("")

	w.writeAlert(md, run)
	w.writeRecords(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeAlert flags runs that did not complete.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.Run) {
	switch run.Status() {
	case "failed":
		md.Cautionf("The run failed: %s", run.ErrorMessage)
	case "interrupted":
		added, _ := run.Totals()
		md.Warningf("The run was interrupted. %d row(s) collected before the stop were saved.", added)
	default:
		added, _ := run.Totals()
		if added == 0 {
			md.Note("No new records. Everything collected is already in the workbook.")
		} else {
			md.Tip(fmt.Sprintf("%d new row(s) appended to the workbook.", added))
		}
	}
	md.PlainText("")
}

// writeRecords writes the per-sheet table and a chart of added rows.
func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, run *model.Run) {
	md.H2("Records")
	md.PlainText("")

	kinds := kindsOf(run.Stats)
	rows := make([][]string, 0, len(kinds)+1)
	for _, kind := range kinds {
		s := run.Stats[kind]
		rows = append(rows, []string{
			kind.Sheet(),
			strconv.Itoa(s.Pages),
			strconv.Itoa(s.Listed),
			strconv.Itoa(s.Enriched),
			strconv.Itoa(s.FailedSteps),
			strconv.Itoa(s.Added),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.LedgerNew),
			strconv.Itoa(s.LedgerChange),
		})
	}
	added, skipped := run.Totals()
	rows = append(rows, []string{"**Total**", "", "", "", "", "**" + strconv.Itoa(added) + "**", "**" + strconv.Itoa(skipped) + "**", "", ""})

	md.Table(markdown.TableSet{
		Header: []string{"Sheet", "Pages", "Listed", "Enriched", "Failed steps", "Added", "Skipped", "New", "Changed"},
		Rows:   rows,
	})
	md.PlainText("")

	if added == 0 {
		return
	}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Rows added per sheet"),
		piechart.WithShowData(true),
	)
	for _, kind := range kinds {
		if n := run.Stats[kind].Added; n > 0 {
			chart.LabelAndIntValue(kind.Sheet(), uint64(n))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// WriteHistory outputs the run history in Markdown format.
func (w *MarkdownWriter) WriteHistory(history *History) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Bankrotscan Run History")
	md.PlainText("")

	if len(history.Runs) == 0 {
		md.Note("No runs recorded yet.")
		md.PlainText("")
	} else {
		rows := make([][]string, 0, len(history.Runs))
		for _, r := range history.Runs {
			added, skipped := sumStats(r.Stats)
			rows = append(rows, []string{
				"`" + shortID(r.ID) + "`",
				r.StartedAt.Format(timeLayout),
				markdownStatus(r.Status, r.Error),
				strconv.Itoa(added),
				strconv.Itoa(skipped),
				r.Output,
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Run", "Started", "Status", "Added", "Skipped", "Output"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(history.Totals) > 0 {
		md.H2("Records in ledger")
		md.PlainText("")
		items := make([]string, 0, len(history.Totals))
		for _, kind := range model.AllKinds {
			if t, ok := history.Totals[kind]; ok {
				items = append(items, kind.Sheet()+": "+strconv.Itoa(t.Records)+" record(s), "+strconv.Itoa(t.Changed)+" changed")
			}
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by bankrotscan*")
}

func markdownStatus(status, errMessage string) string {
	switch status {
	case "failed":
		return "❌ Error - " + errMessage
	case "interrupted":
		return "⚠️ Interrupted (partial results)"
	default:
		return "✅ Complete"
	}
}
