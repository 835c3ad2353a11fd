package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/scanexport/internal/model"
)

// MarkdownWriter outputs run summaries in Markdown format.
// This format is designed for CI job summaries and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounters(md, summary)
	w.writeFailures(md, summary)

	return len(md.String()), md.Build()
}

// writeHeader writes the run identification table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.RunSummary) {
	md.H1("Export Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root Namespace", "`" + summary.RootNamespace + "`"},
			{"Namespaces", strconv.Itoa(summary.Namespaces)},
			{"Started", summary.StartTime.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed().Round(time.Second).String()},
			{"Status", w.statusText(summary)},
		},
	})
	md.PlainText("")
}

// statusText returns the status cell based on the run outcome.
func (w *MarkdownWriter) statusText(summary *model.RunSummary) string {
	if summary.Interrupted {
		return "⚠️ Interrupted (partial results)"
	}
	if summary.Failed > 0 {
		return "❌ Completed with failures"
	}
	return "✅ Complete"
}

// writeCounters writes the per-state project count table.
func (w *MarkdownWriter) writeCounters(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Projects")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"State", "Count"},
		Rows: [][]string{
			{"✅ Completed", strconv.Itoa(summary.Completed)},
			{"⏭️ Skipped", strconv.Itoa(summary.Skipped)},
			{"❌ Failed", strconv.Itoa(summary.Failed)},
			{"**Total**", "**" + strconv.Itoa(summary.Total()) + "**"},
		},
	})
	md.PlainText("")

	if summary.Failed == 0 && !summary.Interrupted {
		md.Note("All projects exported successfully.")
		md.PlainText("")
	}
}

// writeFailures writes the failure table and a warning alert.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.RunSummary) {
	if len(summary.Failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")
	md.Warning("Failed projects are retried from scratch on the next run.")
	md.PlainText("")

	rows := make([][]string, 0, len(summary.Failures))
	for _, failure := range summary.Failures {
		cause := ""
		if failure.Err != nil {
			cause = failure.Err.Error()
		}
		rows = append(rows, []string{
			failure.Project.Namespace,
			failure.Project.Name,
			"`" + failure.Project.UUID + "`",
			cause,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Namespace", "Project", "UUID", "Cause"},
		Rows:   rows,
	})
	md.PlainText("")
}
