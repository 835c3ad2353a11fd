package model

import (
	"errors"
	"testing"
	"time"
)

// TestRunSummaryAdd checks that Add routes each terminal state to the
// right counter and that failures are retained for the final report.
func TestRunSummaryAdd(t *testing.T) {
	t.Parallel()

	var s RunSummary

	s.Add(ProjectResult{Project: Project{UUID: "p1"}, State: StateCompleted})
	s.Add(ProjectResult{Project: Project{UUID: "p2"}, State: StateSkipped})
	s.Add(ProjectResult{Project: Project{UUID: "p3"}, State: StateFailed, Err: errors.New("fetch failed")})
	s.Add(ProjectResult{Project: Project{UUID: "p4"}, State: StateCompleted})

	if s.Completed != 2 {
		t.Errorf("Completed = %d, want 2", s.Completed)
	}
	if s.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", s.Skipped)
	}
	if s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
	if s.Total() != 4 {
		t.Errorf("Total() = %d, want 4", s.Total())
	}

	if len(s.Failures) != 1 {
		t.Fatalf("len(Failures) = %d, want 1", len(s.Failures))
	}
	if s.Failures[0].Project.UUID != "p3" {
		t.Errorf("Failures[0].Project.UUID = %q, want %q", s.Failures[0].Project.UUID, "p3")
	}
	if s.Failures[0].Err == nil {
		t.Error("Failures[0].Err is nil, want the failure cause")
	}
}

// TestRunSummaryElapsed verifies wall-clock duration computation.
func TestRunSummaryElapsed(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := RunSummary{
		StartTime: start,
		EndTime:   start.Add(90 * time.Second),
	}

	if got := s.Elapsed(); got != 90*time.Second {
		t.Errorf("Elapsed() = %v, want 90s", got)
	}
}
