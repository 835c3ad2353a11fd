package model

import "time"

// ProjectState is the terminal state of one project's export.
type ProjectState string

// Terminal states of the export driver's per-project state machine.
// A project starts in an implicit pending state and always ends in exactly
// one of these.
const (
	// StateCompleted means both artifacts were fetched and persisted and
	// the checkpoint entry was durably written.
	StateCompleted ProjectState = "completed"

	// StateSkipped means the checkpoint already recorded the project as
	// complete and no force flag was set, so no work was done.
	StateSkipped ProjectState = "skipped"

	// StateFailed means at least one artifact fetch failed after the retry
	// budget was exhausted. No artifact files and no checkpoint entry were
	// written for the project; the next run redoes it from scratch.
	StateFailed ProjectState = "failed"
)

// ProjectResult records the outcome of exporting one project.
// It is the unit collected for the manifest, the run summary, and the
// export history database.
type ProjectResult struct {
	// Project identifies what was exported.
	Project Project

	// State is the terminal state the project reached.
	State ProjectState

	// FindingsCount and ScanResultsCount are the record counts written to
	// the two artifact files. For skipped projects they are re-read from
	// the existing files so the manifest stays accurate across resumes.
	FindingsCount    int
	ScanResultsCount int

	// FindingsFile and ScanResultsFile are the artifact file base names.
	FindingsFile    string
	ScanResultsFile string

	// Elapsed is how long the project took. Zero for skipped projects.
	Elapsed time.Duration

	// Err is the failure cause when State is StateFailed, nil otherwise.
	Err error
}

// RunSummary aggregates per-project outcomes for the final report.
// Failures are never silent: every failed project appears in Failures.
type RunSummary struct {
	// RootNamespace is the namespace the crawl started from.
	RootNamespace string

	// Namespaces is the number of namespaces processed.
	Namespaces int

	// Completed, Skipped, and Failed count projects by terminal state.
	Completed int
	Skipped   int
	Failed    int

	// Failures holds the results of all failed projects, in the order
	// they were encountered.
	Failures []ProjectResult

	// StartTime and EndTime bound the run.
	StartTime time.Time
	EndTime   time.Time

	// Interrupted is true when the run stopped at a project boundary
	// because the operator cancelled it.
	Interrupted bool
}

// Total returns the number of projects that reached a terminal state.
func (s *RunSummary) Total() int {
	return s.Completed + s.Skipped + s.Failed
}

// Add folds one project result into the summary counters.
func (s *RunSummary) Add(r ProjectResult) {
	switch r.State {
	case StateCompleted:
		s.Completed++
	case StateSkipped:
		s.Skipped++
	case StateFailed:
		s.Failed++
		s.Failures = append(s.Failures, r)
	}
}

// Elapsed returns the wall-clock duration of the run.
func (s *RunSummary) Elapsed() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
