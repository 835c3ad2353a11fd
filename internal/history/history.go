package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/scanexport/internal/model"
)

// ErrNoHistory marks history lookups against an absent database.
var ErrNoHistory = errors.New("history: no database")

// DB provides SQLite-based storage for export run history.
//
// Design decision: We use a single database file for all runs rather
// than one per namespace. Cross-run queries ("how did this project's
// finding count move over the last month") are the whole point of
// keeping history, and they need every run in one place.
type DB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database at the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error
// is returned; the verify subcommand uses that mode so it never creates
// an empty history just by being run.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, "scanexport.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNoHistory, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &DB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // Open error takes precedence
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // Open error takes precedence
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *DB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *DB) createTables() error {
	schema := `
	-- One row per export run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root_namespace TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		namespaces INTEGER DEFAULT 0,
		completed INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		interrupted INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root_namespace);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per terminal project outcome within a run
	CREATE TABLE IF NOT EXISTS project_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		namespace TEXT NOT NULL,
		project_uuid TEXT NOT NULL,
		project_name TEXT,
		state TEXT NOT NULL,
		findings_count INTEGER DEFAULT 0,
		scanresults_count INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		error TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON project_outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_project ON project_outcomes(project_uuid);
	CREATE INDEX IF NOT EXISTS idx_outcomes_namespace ON project_outcomes(namespace);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// BeginRun inserts a new run row and returns its generated identifier.
func (hdb *DB) BeginRun(ctx context.Context, rootNamespace string) (string, error) {
	runID := uuid.NewString()

	query := `
	INSERT INTO runs (id, root_namespace, started_at)
	VALUES (?, ?, ?)
	`

	_, err := hdb.db.ExecContext(ctx, query, runID, rootNamespace, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// RecordProject stores one terminal project outcome for a run.
func (hdb *DB) RecordProject(ctx context.Context, runID string, result model.ProjectResult) error {
	var errText string
	if result.Err != nil {
		errText = result.Err.Error()
	}

	query := `
	INSERT INTO project_outcomes
		(run_id, namespace, project_uuid, project_name, state, findings_count, scanresults_count, duration_ms, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := hdb.db.ExecContext(ctx, query,
		runID,
		result.Project.Namespace,
		result.Project.UUID,
		result.Project.Name,
		string(result.State),
		result.FindingsCount,
		result.ScanResultsCount,
		result.Elapsed.Milliseconds(),
		errText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project outcome: %w", err)
	}
	return nil
}

// FinishRun closes out a run row with the summary counters.
func (hdb *DB) FinishRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	query := `
	UPDATE runs SET
		finished_at = ?,
		namespaces = ?,
		completed = ?,
		skipped = ?,
		failed = ?,
		interrupted = ?
	WHERE id = ?
	`

	interrupted := 0
	if summary.Interrupted {
		interrupted = 1
	}

	_, err := hdb.db.ExecContext(ctx, query,
		summary.EndTime.UTC().Format(time.RFC3339),
		summary.Namespaces,
		summary.Completed,
		summary.Skipped,
		summary.Failed,
		interrupted,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RunRecord is one stored export run.
type RunRecord struct {
	ID            string
	RootNamespace string
	StartedAt     time.Time
	FinishedAt    time.Time
	Namespaces    int
	Completed     int
	Skipped       int
	Failed        int
	Interrupted   bool
}

// ListRuns returns the most recent runs, newest first.
func (hdb *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, root_namespace, started_at, finished_at, namespaces, completed, skipped, failed, interrupted
	FROM runs
	ORDER BY started_at DESC
	LIMIT ?
	`

	rows, err := hdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	var results []RunRecord
	for rows.Next() {
		var (
			run         RunRecord
			startedAt   string
			finishedAt  sql.NullString
			interrupted int
		)
		if err := rows.Scan(
			&run.ID,
			&run.RootNamespace,
			&startedAt,
			&finishedAt,
			&run.Namespaces,
			&run.Completed,
			&run.Skipped,
			&run.Failed,
			&interrupted,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTimestamp(finishedAt.String)
		}
		run.Interrupted = interrupted != 0
		results = append(results, run)
	}

	return results, rows.Err()
}

// ProjectOutcome is one stored per-project result.
type ProjectOutcome struct {
	RunID            string
	Namespace        string
	ProjectUUID      string
	ProjectName      string
	State            model.ProjectState
	FindingsCount    int
	ScanResultsCount int
	Duration         time.Duration
	Error            string
	Timestamp        time.Time
}

// ProjectHistory returns a project's outcomes across runs, newest first.
// This is the "how did the counts move over time" query.
func (hdb *DB) ProjectHistory(ctx context.Context, projectUUID string, limit int) ([]ProjectOutcome, error) {
	query := `
	SELECT run_id, namespace, project_uuid, project_name, state, findings_count, scanresults_count, duration_ms, error, timestamp
	FROM project_outcomes
	WHERE project_uuid = ?
	ORDER BY timestamp DESC
	LIMIT ?
	`

	rows, err := hdb.db.QueryContext(ctx, query, projectUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query project history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	return scanOutcomes(rows)
}

// RunOutcomes returns every project outcome recorded for one run.
func (hdb *DB) RunOutcomes(ctx context.Context, runID string) ([]ProjectOutcome, error) {
	query := `
	SELECT run_id, namespace, project_uuid, project_name, state, findings_count, scanresults_count, duration_ms, error, timestamp
	FROM project_outcomes
	WHERE run_id = ?
	ORDER BY id ASC
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run outcomes: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	return scanOutcomes(rows)
}

// scanOutcomes drains an outcome query into records.
func scanOutcomes(rows *sql.Rows) ([]ProjectOutcome, error) {
	var results []ProjectOutcome
	for rows.Next() {
		var (
			outcome    ProjectOutcome
			state      string
			durationMS int64
			errText    sql.NullString
			timestamp  string
		)
		if err := rows.Scan(
			&outcome.RunID,
			&outcome.Namespace,
			&outcome.ProjectUUID,
			&outcome.ProjectName,
			&state,
			&outcome.FindingsCount,
			&outcome.ScanResultsCount,
			&durationMS,
			&errText,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project outcome: %w", err)
		}

		outcome.State = model.ProjectState(state)
		outcome.Duration = time.Duration(durationMS) * time.Millisecond
		if errText.Valid {
			outcome.Error = errText.String
		}
		outcome.Timestamp = parseTimestamp(timestamp)
		results = append(results, outcome)
	}

	return results, rows.Err()
}

// LatestRun returns the most recent run, or nil when the database holds
// none.
func (hdb *DB) LatestRun(ctx context.Context) (*RunRecord, error) {
	runs, err := hdb.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending
// on configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
