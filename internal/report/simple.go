package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/scanexport/internal/model"
)

// SimpleWriter outputs human-readable text summaries.
// This format is designed for terminal display at the end of a run.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because it works in all terminals and pipes cleanly to
// files and other tools.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounters(&sb, summary)
	w.writeFailures(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the run identification block.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         EXPORT SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Root Namespace: %s\n", summary.RootNamespace))
	sb.WriteString(fmt.Sprintf("Namespaces:     %d\n", summary.Namespaces))
	sb.WriteString(fmt.Sprintf("Started:        %s\n", summary.StartTime.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Elapsed:        %s\n", summary.Elapsed().Round(time.Second)))

	if summary.Interrupted {
		sb.WriteString("Status:         INTERRUPTED (partial results)\n")
	} else if summary.Failed > 0 {
		sb.WriteString("Status:         COMPLETED WITH FAILURES\n")
	} else {
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString("\n")
}

// writeCounters writes the per-state project counts.
func (w *SimpleWriter) writeCounters(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PROJECTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  COMPLETED: %d\n", summary.Completed))
	sb.WriteString(fmt.Sprintf("  SKIPPED:   %d\n", summary.Skipped))
	sb.WriteString(fmt.Sprintf("  FAILED:    %d\n", summary.Failed))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  TOTAL:     %d projects\n", summary.Total()))
	sb.WriteString("\n")
}

// writeFailures lists each failed project with its cause. Failures are
// never silent.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.RunSummary) {
	if len(summary.Failures) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, failure := range summary.Failures {
		sb.WriteString(fmt.Sprintf("  * %s/%s", failure.Project.Namespace, failure.Project.Name))
		if failure.Project.UUID != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", failure.Project.UUID))
		}
		sb.WriteString("\n")
		if failure.Err != nil {
			sb.WriteString(fmt.Sprintf("    Cause: %s\n", failure.Err))
		}
	}
	sb.WriteString("\n")
}
