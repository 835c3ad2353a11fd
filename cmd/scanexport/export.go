package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanexport/internal/config"
	"github.com/nao1215/scanexport/internal/export"
	"github.com/nao1215/scanexport/internal/history"
	"github.com/nao1215/scanexport/internal/model"
	"github.com/nao1215/scanexport/internal/report"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export findings and scan results for every project under a namespace",
		Long: `Export walks every namespace reachable from the root namespace, lists
each namespace's projects, and writes two JSON artifacts per project:
findings_<uuid>.json and scanresults_<uuid>.json.

Completed projects are checkpointed per namespace; re-running skips them,
so the command is safe to re-run until the summary is clean. Use --force
to discard the checkpoints and redo everything.

Examples:
  # Export everything under the namespace from ENDOR_NAMESPACE
  scanexport export

  # Export a namespace tree explicitly
  scanexport export --namespace acme

  # Only one namespace, no discovery
  scanexport export --namespace acme --only-namespace acme.prod

  # Redo everything with four projects in flight
  scanexport export --namespace acme --force --workers 4

Exit codes: 0 full success, 1 completed with failures, 2 fatal setup
error, 130 interrupted.`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("namespace", "n", "",
		"Root namespace to export (default: ENDOR_NAMESPACE)")
	cmd.Flags().String("only-namespace", "",
		"Restrict the run to exactly this namespace, skipping discovery")
	cmd.Flags().BoolP("force", "f", false,
		"Ignore checkpoints and re-export every project")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Projects processed concurrently per namespace (1 = sequential)")

	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout for each HTTP call")
	cmd.Flags().Duration("findings-timeout", config.DefaultFindingsTimeout,
		"Timeout for each findings page fetch")
	cmd.Flags().Duration("scanresults-timeout", config.DefaultScanResultsTimeout,
		"Timeout for each scan-results page fetch")
	cmd.Flags().Int("max-attempts", config.DefaultMaxAttempts,
		"Retry budget per HTTP call")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryBaseDelay,
		"Exponential backoff base delay")

	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory for per-namespace artifact directories")
	cmd.Flags().String("state-dir", config.DefaultStateDir,
		"Directory for per-namespace checkpoint files")
	cmd.Flags().String("api-url", config.DefaultAPIURL,
		"Base URL of the vendor API")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .scanexport in current or home directory)")

	cmd.Flags().BoolP("markdown", "m", false,
		"Write the run summary as Markdown instead of plain text")
	cmd.Flags().String("report", "",
		"Write the run summary to the specified file instead of stdout")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the export history database")
	cmd.Flags().String("history-dir", config.XDGDataDir(),
		"Directory for the export history database")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildExportConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	client := newClient(cfg, creds, logger)
	if err := client.Authenticate(ctx); err != nil {
		return err
	}

	opts := []export.Option{export.WithLogger(logger)}

	// History is an observer: its failures are logged and swallowed.
	recorder := openHistory(ctx, cfg, logger)
	if recorder != nil {
		defer recorder.close(logger)
		opts = append(opts, export.WithObserver(recorder.record))
	}

	driver := export.New(client, cfg, opts...)
	summary, err := driver.Run(ctx)
	if err != nil {
		return err
	}
	if recorder != nil {
		recorder.finish(summary, logger)
	}

	if err := writeSummary(cfg, summary); err != nil {
		return err
	}

	switch {
	case summary.Interrupted:
		return exitWithCode(ExitInterrupted, errors.New("export interrupted"))
	case summary.Failed > 0:
		return exitWithCode(ExitFailures,
			fmt.Errorf("export completed with %d failed project(s)", summary.Failed))
	default:
		return nil
	}
}

// buildExportConfig creates a Config from cobra command flags.
func buildExportConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.RootNamespace, err = cmd.Flags().GetString("namespace")
	if err != nil {
		return nil, err
	}
	if cfg.RootNamespace == "" {
		cfg.RootNamespace = config.NamespaceFromEnv()
	}

	cfg.OnlyNamespace, err = cmd.Flags().GetString("only-namespace")
	if err != nil {
		return nil, err
	}
	cfg.Force, err = cmd.Flags().GetBool("force")
	if err != nil {
		return nil, err
	}
	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}
	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	cfg.FindingsTimeout, err = cmd.Flags().GetDuration("findings-timeout")
	if err != nil {
		return nil, err
	}
	cfg.ScanResultsTimeout, err = cmd.Flags().GetDuration("scanresults-timeout")
	if err != nil {
		return nil, err
	}
	cfg.MaxAttempts, err = cmd.Flags().GetInt("max-attempts")
	if err != nil {
		return nil, err
	}
	cfg.RetryBaseDelay, err = cmd.Flags().GetDuration("retry-delay")
	if err != nil {
		return nil, err
	}
	cfg.OutputDir, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	cfg.StateDir, err = cmd.Flags().GetString("state-dir")
	if err != nil {
		return nil, err
	}
	cfg.APIURL, err = cmd.Flags().GetString("api-url")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = cmd.Flags().GetString("report")
	if err != nil {
		return nil, err
	}
	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory
	cfg.HistoryDBDir, err = cmd.Flags().GetString("history-dir")
	if err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// Load per-namespace overrides. An explicitly named file must
	// exist; the default search may come up empty.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		cfg.NamespaceConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	return cfg, nil
}

// writeSummary renders the run summary to stdout or the report file.
func writeSummary(cfg *config.Config, summary *model.RunSummary) error {
	var out io.Writer = os.Stdout
	if cfg.ReportFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.ReportFile), 0750); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
		file, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer file.Close() //nolint:errcheck // Best-effort close after write error check below
		out = file
	}

	var writer report.Writer
	if cfg.MarkdownReport {
		writer = report.NewMarkdownWriter(out)
	} else {
		writer = report.NewSimpleWriter(out)
	}
	if _, err := writer.Write(summary); err != nil {
		return fmt.Errorf("writing run summary: %w", err)
	}
	return nil
}

// runRecorder ties the history database to one run.
type runRecorder struct {
	db    *history.DB
	runID string
	ctx   context.Context
}

// openHistory opens the history database and begins a run row. Any
// failure is logged and the export proceeds without history.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) *runRecorder {
	if !cfg.SaveHistory {
		return nil
	}

	// The run context is cancelled on SIGINT/SIGTERM, but an interrupted
	// run is precisely the one whose history row must still be closed
	// out. Detach history writes from the cancellation.
	ctx = context.WithoutCancel(ctx)

	db, err := history.Open(cfg.HistoryDBDir, history.DefaultOptions())
	if err != nil {
		logger.Warn("history database unavailable, continuing without it",
			"dir", cfg.HistoryDBDir,
			"error", err.Error(),
		)
		return nil
	}

	runID, err := db.BeginRun(ctx, cfg.RootNamespace)
	if err != nil {
		logger.Warn("could not begin history run, continuing without it",
			"error", err.Error(),
		)
		_ = db.Close() //nolint:errcheck // Already degrading to no history
		return nil
	}

	logger.Debug("history run started", "runID", runID, "dir", cfg.HistoryDBDir)
	return &runRecorder{db: db, runID: runID, ctx: ctx}
}

// record stores one terminal project result.
func (r *runRecorder) record(result model.ProjectResult) {
	if err := r.db.RecordProject(r.ctx, r.runID, result); err != nil {
		slog.Default().Warn("recording project history failed",
			"uuid", result.Project.UUID,
			"error", err.Error(),
		)
	}
}

// finish closes out the run row with the summary counters.
func (r *runRecorder) finish(summary *model.RunSummary, logger *slog.Logger) {
	if err := r.db.FinishRun(r.ctx, r.runID, summary); err != nil {
		logger.Warn("finishing history run failed", "error", err.Error())
	}
}

// close releases the database connection.
func (r *runRecorder) close(logger *slog.Logger) {
	if err := r.db.Close(); err != nil {
		logger.Warn("closing history database failed", "error", err.Error())
	}
}
