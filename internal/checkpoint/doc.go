// Package checkpoint persists per-namespace export progress so an
// interrupted run can resume without redoing completed projects.
//
// Each namespace owns one JSON state file mapping project UUIDs to the
// time their export completed. A project is recorded only after all of
// its artifacts are durably on disk, so the state file never claims
// more than what actually exists.
package checkpoint
