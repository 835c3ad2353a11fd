package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanexport/internal/config"
	"github.com/nao1215/scanexport/internal/history"
	"github.com/nao1215/scanexport/internal/verify"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check exported artifacts against their manifests",
		Long: `Verify re-counts the records in every artifact file and compares the
counts against the export_manifest.csv rows written by the export
command. Mismatches usually mean an artifact was edited or truncated
after the export finished.

With --history, verify instead queries the history database: by default
the most recent export runs, with --run one run's per-project outcomes,
and with --project one project's outcomes across runs (how its counts
moved over time).

Exit codes: 0 all artifacts match, 1 any mismatch or missing artifact,
2 when the manifest or export directory does not exist.`,
		Args: cobra.NoArgs,
		RunE: runVerifyCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory holding the exported artifacts")
	cmd.Flags().StringP("namespace", "n", "",
		"Verify a single namespace instead of every exported one")
	cmd.Flags().Bool("history", false,
		"List recent export runs from the history database")
	cmd.Flags().Int("limit", 10,
		"Maximum rows listed with --history")
	cmd.Flags().String("run", "",
		"With --history, show per-project outcomes of one run ID")
	cmd.Flags().String("project", "",
		"With --history, show one project's outcomes across runs")
	cmd.Flags().String("history-dir", config.XDGDataDir(),
		"Directory holding the export history database")

	return cmd
}

// runVerifyCmd executes the verify command.
func runVerifyCmd(cmd *cobra.Command, _ []string) error {
	showHistory, err := cmd.Flags().GetBool("history")
	if err != nil {
		return err
	}
	if showHistory {
		return runVerifyHistory(cmd)
	}

	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	namespace, err := cmd.Flags().GetString("namespace")
	if err != nil {
		return err
	}

	result, err := collectVerification(outputDir, namespace)
	if err != nil {
		return err
	}

	printVerification(cmd, result)

	if !result.Clean() {
		matched, mismatched, missing := result.Totals()
		return exitWithCode(ExitFailures,
			fmt.Errorf("verification failed: %d matched, %d mismatched, %d missing",
				matched, mismatched, missing))
	}
	return nil
}

// collectVerification runs the namespace or whole-directory check.
func collectVerification(outputDir, namespace string) (*verify.Result, error) {
	if namespace != "" {
		nsResult, err := verify.Namespace(outputDir, namespace)
		if err != nil {
			return nil, err
		}
		return &verify.Result{Namespaces: []verify.NamespaceResult{*nsResult}}, nil
	}
	return verify.All(outputDir)
}

// printVerification writes one line per checked project plus totals.
func printVerification(cmd *cobra.Command, result *verify.Result) {
	for _, ns := range result.Namespaces {
		fmt.Fprintf(cmd.OutOrStdout(), "namespace %s\n", ns.Namespace)
		for _, check := range ns.Checks {
			if check.Status == verify.StatusMatch {
				fmt.Fprintf(cmd.OutOrStdout(), "  ok       %s (%s)\n",
					check.Entry.ProjectUUID, check.Entry.ProjectName)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %s (%s): %s\n",
				check.Status, check.Entry.ProjectUUID, check.Entry.ProjectName, check.Detail)
		}
	}

	matched, mismatched, missing := result.Totals()
	fmt.Fprintf(cmd.OutOrStdout(), "verified %d project(s): %d matched, %d mismatched, %d missing\n",
		matched+mismatched+missing, matched, mismatched, missing)
}

// runVerifyHistory answers the --history queries.
func runVerifyHistory(cmd *cobra.Command) error {
	historyDir, err := cmd.Flags().GetString("history-dir")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	projectUUID, err := cmd.Flags().GetString("project")
	if err != nil {
		return err
	}

	// Never create an empty database just by asking about history.
	opts := history.Options{CreateIfNotExists: false, EnableWAL: false}
	db, err := history.Open(historyDir, opts)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-only usage

	switch {
	case projectUUID != "":
		return printProjectHistory(cmd, db, projectUUID, limit)
	case runID != "":
		return printRunOutcomes(cmd, db, runID)
	default:
		return printRecentRuns(cmd, db, limit)
	}
}

// printRecentRuns lists recent export runs, newest first.
func printRecentRuns(cmd *cobra.Command, db *history.DB, limit int) error {
	runs, err := db.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no export runs recorded")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  namespace=%s  completed=%d skipped=%d failed=%d  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			runStatus(run),
			run.RootNamespace,
			run.Completed, run.Skipped, run.Failed,
			run.ID,
		)
	}
	return nil
}

// printRunOutcomes lists every project outcome of one run.
func printRunOutcomes(cmd *cobra.Command, db *history.DB, runID string) error {
	outcomes, err := db.RunOutcomes(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no outcomes recorded for run %s\n", runID)
		return nil
	}

	for _, outcome := range outcomes {
		printOutcome(cmd, outcome)
	}
	return nil
}

// printProjectHistory lists one project's outcomes across runs, newest
// first, so count drift between exports is visible at a glance.
func printProjectHistory(cmd *cobra.Command, db *history.DB, projectUUID string, limit int) error {
	outcomes, err := db.ProjectHistory(cmd.Context(), projectUUID, limit)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no outcomes recorded for project %s\n", projectUUID)
		return nil
	}

	for _, outcome := range outcomes {
		printOutcome(cmd, outcome)
	}
	return nil
}

// printOutcome writes one project outcome row.
func printOutcome(cmd *cobra.Command, outcome history.ProjectOutcome) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s (%s)  findings=%d scanresults=%d  run=%s",
		outcome.Timestamp.Format("2006-01-02 15:04:05"),
		outcome.State,
		outcome.ProjectUUID,
		outcome.ProjectName,
		outcome.FindingsCount,
		outcome.ScanResultsCount,
		outcome.RunID,
	)
	if outcome.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  error=%q", outcome.Error)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

// runStatus labels a run row for the listing.
func runStatus(run history.RunRecord) string {
	switch {
	case run.Interrupted:
		return "interrupted"
	case run.Failed > 0:
		return "failed"
	default:
		return "ok"
	}
}
