package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/scanexport/internal/config"
	"github.com/nao1215/scanexport/internal/history"
	"github.com/nao1215/scanexport/internal/model"
)

// TestNewExportCmd tests the export command creation.
func TestNewExportCmd(t *testing.T) {
	t.Parallel()

	cmd := NewExportCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "export" {
			t.Errorf("expected use 'export', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has namespace flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("namespace")
		if flag == nil {
			t.Fatal("expected namespace flag")
		}
		if flag.Shorthand != "n" {
			t.Errorf("expected shorthand 'n', got %q", flag.Shorthand)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})

	t.Run("has workers flag with sequential default", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("workers")
		if flag == nil {
			t.Fatal("expected workers flag")
		}
		if flag.DefValue != "1" {
			t.Errorf("expected default '1', got %q", flag.DefValue)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.DefValue != config.DefaultOutputDir {
			t.Errorf("expected default %q, got %q", config.DefaultOutputDir, flag.DefValue)
		}
	})

	t.Run("has retry flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"max-attempts", "retry-delay", "timeout", "findings-timeout", "scanresults-timeout"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})

	t.Run("has report flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"markdown", "report", "no-history"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})
}

// TestBuildExportConfig tests flag-to-config translation.
func TestBuildExportConfig(t *testing.T) {
	t.Run("applies flag values", func(t *testing.T) {
		cmd := NewExportCmd()
		if err := cmd.ParseFlags([]string{
			"--namespace", "acme",
			"--only-namespace", "acme.prod",
			"--force",
			"--workers", "4",
			"--timeout", "30s",
			"--max-attempts", "3",
			"--retry-delay", "2s",
			"--output", "out",
			"--state-dir", "state",
			"--markdown",
			"--no-history",
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, err := buildExportConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.RootNamespace != "acme" {
			t.Errorf("expected namespace 'acme', got %q", cfg.RootNamespace)
		}
		if cfg.OnlyNamespace != "acme.prod" {
			t.Errorf("expected only-namespace 'acme.prod', got %q", cfg.OnlyNamespace)
		}
		if !cfg.Force {
			t.Error("expected force to be true")
		}
		if cfg.Workers != 4 {
			t.Errorf("expected 4 workers, got %d", cfg.Workers)
		}
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected 30s timeout, got %v", cfg.Timeout)
		}
		if cfg.MaxAttempts != 3 {
			t.Errorf("expected 3 attempts, got %d", cfg.MaxAttempts)
		}
		if cfg.RetryBaseDelay != 2*time.Second {
			t.Errorf("expected 2s retry delay, got %v", cfg.RetryBaseDelay)
		}
		if cfg.OutputDir != "out" {
			t.Errorf("expected output dir 'out', got %q", cfg.OutputDir)
		}
		if cfg.StateDir != "state" {
			t.Errorf("expected state dir 'state', got %q", cfg.StateDir)
		}
		if !cfg.MarkdownReport {
			t.Error("expected markdown report to be enabled")
		}
		if cfg.SaveHistory {
			t.Error("expected --no-history to disable history")
		}
	})

	t.Run("falls back to environment namespace", func(t *testing.T) {
		t.Setenv(config.EnvNamespace, "envspace")

		cmd := NewExportCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, err := buildExportConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.RootNamespace != "envspace" {
			t.Errorf("expected namespace from environment, got %q", cfg.RootNamespace)
		}
	})

	t.Run("keeps defaults without flags", func(t *testing.T) {
		cmd := NewExportCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, err := buildExportConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Workers != config.DefaultWorkers {
			t.Errorf("expected default workers, got %d", cfg.Workers)
		}
		if cfg.MaxAttempts != config.DefaultMaxAttempts {
			t.Errorf("expected default max attempts, got %d", cfg.MaxAttempts)
		}
		if !cfg.SaveHistory {
			t.Error("expected history enabled by default")
		}
	})

	t.Run("rejects missing explicit config file", func(t *testing.T) {
		cmd := NewExportCmd()
		if err := cmd.ParseFlags([]string{
			"--config", filepath.Join(t.TempDir(), "nope.yml"),
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := buildExportConfig(cmd)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("loads explicit config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scanexport.yml")
		content := `namespaces:
  acme:
    findingsPageSize: 75
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cmd := NewExportCmd()
		if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, err := buildExportConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.NamespaceConfigs == nil {
			t.Fatal("expected namespace configs to be loaded")
		}
		nsCfg := cfg.NamespaceConfigs.GetNamespaceConfig("acme")
		if nsCfg.FindingsPageSize != 75 {
			t.Errorf("expected findings page size 75, got %d", nsCfg.FindingsPageSize)
		}
	})
}

// TestHistoryRecorderSurvivesCancelledRun checks that an interrupted
// run still gets its history row closed out: the recorder's writes
// must not die with the run context.
func TestHistoryRecorderSurvivesCancelledRun(t *testing.T) {
	t.Parallel()

	historyDir := t.TempDir()
	cfg := config.NewConfig()
	cfg.RootNamespace = "acme"
	cfg.HistoryDBDir = historyDir
	logger := slog.New(slog.DiscardHandler)

	ctx, cancel := context.WithCancel(context.Background())
	recorder := openHistory(ctx, cfg, logger)
	if recorder == nil {
		t.Fatal("expected a recorder")
	}

	// Operator hits Ctrl-C mid-run.
	cancel()

	recorder.record(model.ProjectResult{
		Project: model.Project{UUID: "p1", Name: "api-server", Namespace: "acme"},
		State:   model.StateCompleted,
	})
	summary := &model.RunSummary{
		RootNamespace: "acme",
		Namespaces:    1,
		Completed:     1,
		Interrupted:   true,
		EndTime:       time.Now(),
	}
	recorder.finish(summary, logger)
	recorder.close(logger)

	db, err := history.Open(historyDir, history.Options{CreateIfNotExists: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close() //nolint:errcheck // Read-only usage

	run, err := db.LatestRun(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run == nil {
		t.Fatal("expected a recorded run")
	}
	if !run.Interrupted {
		t.Error("expected the run to be recorded as interrupted")
	}
	if run.FinishedAt.IsZero() {
		t.Error("expected the run to be closed out with a finish time")
	}
	if run.Completed != 1 {
		t.Errorf("expected 1 completed project, got %d", run.Completed)
	}

	outcomes, err := db.RunOutcomes(t.Context(), run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 project outcome, got %d", len(outcomes))
	}
	if outcomes[0].ProjectUUID != "p1" {
		t.Errorf("expected outcome for p1, got %q", outcomes[0].ProjectUUID)
	}
}
