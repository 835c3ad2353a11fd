// Package history records export runs in a local SQLite database so
// record counts can be compared across runs over time.
//
// The database is an observer of the export, never a participant: a
// history write failure is logged and swallowed, and the export's own
// durability rests entirely on the artifacts and the checkpoint files.
package history
