// Package main provides the entry point for the scanexport CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanexport/internal/api"
	"github.com/nao1215/scanexport/internal/config"
	"github.com/nao1215/scanexport/internal/log"
)

// Process exit codes. The export and verify subcommands are meant for
// automation, so the codes are part of the interface.
const (
	// ExitOK means full success.
	ExitOK = 0

	// ExitFailures means the run completed but at least one project
	// failed or at least one artifact did not verify.
	ExitFailures = 1

	// ExitFatal means a setup failure: bad flags, missing credentials,
	// or an unreachable API. Nothing was in flight.
	ExitFatal = 2

	// ExitInterrupted means the run was cancelled by the operator.
	ExitInterrupted = 130
)

// exitCodeError carries a specific exit code out of a RunE function.
// Errors without one exit with ExitFatal.
type exitCodeError struct {
	code int
	err  error
}

// Error returns the underlying message.
func (e *exitCodeError) Error() string {
	return e.err.Error()
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e *exitCodeError) Unwrap() error {
	return e.err
}

// exitWithCode wraps err with an explicit exit code.
func exitWithCode(code int, err error) error {
	return &exitCodeError{code: code, err: err}
}

// NewRootCmd creates the root command for scanexport.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scanexport",
		Short: "Resumable findings and scan-results exporter for the Endor Labs API",
		Long: `scanexport crawls every project under a namespace and exports each
project's findings and scan results to per-project JSON files.

Runs are resumable: completed projects are recorded in a per-namespace
checkpoint and skipped on the next run, so an interrupted or partially
failed export can simply be re-run until it is clean.

Credentials come from the environment (or a .env file):
  ENDOR_TOKEN                     an already-issued API token, or
  ENDOR_API_CREDENTIALS_KEY and
  ENDOR_API_CREDENTIALS_SECRET    a key pair exchanged for a token`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewNamespacesCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if err == nil {
		return ExitOK
	}

	fmt.Fprintln(os.Stderr, err)

	var coded *exitCodeError
	if errors.As(err, &coded) {
		return coded.code
	}
	return ExitFatal
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the credential-masking structured logger.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing current project...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// newClient builds the API client from configuration and credentials.
func newClient(cfg *config.Config, creds config.Credentials, logger *slog.Logger) *api.Client {
	retry := api.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		Jitter:      true,
		Logger:      logger,
	}
	return api.NewClient(cfg.APIURL, creds,
		api.WithRetryPolicy(retry),
		api.WithTimeout(cfg.Timeout),
		api.WithFindingsTimeout(cfg.FindingsTimeout),
		api.WithScanResultsTimeout(cfg.ScanResultsTimeout),
		api.WithLogger(logger),
	)
}
