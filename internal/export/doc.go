// Package export orchestrates the crawl: for every project of every
// namespace under the root, it fetches the findings and scan-results
// artifacts, persists them atomically, and records completion in the
// namespace checkpoint.
//
// The per-project state machine is all-or-nothing. A project reaches
// Completed only after both artifact files are durably on disk and the
// checkpoint entry is written; any earlier failure leaves the project
// Failed with nothing checkpointed, so the next run redoes it from
// scratch. Already-checkpointed projects are Skipped. One project's
// failure never aborts the run.
package export
