// Package report renders the end-of-run summary: per-state project
// counts, failure details, and timing, as plain text or Markdown.
package report
