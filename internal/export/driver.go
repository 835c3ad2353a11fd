package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/scanexport/internal/checkpoint"
	"github.com/nao1215/scanexport/internal/config"
	"github.com/nao1215/scanexport/internal/model"
)

// Fetcher is the slice of the API client the driver needs. The driver
// never touches HTTP details; pagination, retries, and auth live behind
// this interface.
type Fetcher interface {
	// ListNamespaces returns the namespaces reachable from root,
	// including root itself.
	ListNamespaces(ctx context.Context, root string) ([]string, error)

	// ListProjects returns all projects in the namespace.
	ListProjects(ctx context.Context, namespace string) ([]model.Project, error)

	// ProjectFindings fetches all findings for one project.
	// pageSize 0 uses the default.
	ProjectFindings(ctx context.Context, namespace, projectUUID string, pageSize int) ([]model.Record, error)

	// ProjectScanResults fetches all scan results for one project.
	ProjectScanResults(ctx context.Context, namespace, projectUUID string, pageSize int) ([]model.Record, error)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default discards nothing but logs to
// the process default handler.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithObserver registers a callback invoked once per terminal project
// result. The export history recorder hooks in here; observer failures
// are the observer's own problem and must not panic.
func WithObserver(fn func(model.ProjectResult)) Option {
	return func(d *Driver) {
		d.observers = append(d.observers, fn)
	}
}

// Driver walks namespaces and projects and drives each project through
// the export state machine.
type Driver struct {
	fetcher   Fetcher
	cfg       *config.Config
	logger    *slog.Logger
	observers []func(model.ProjectResult)
}

// New returns a Driver over the given API surface and configuration.
func New(fetcher Fetcher, cfg *config.Config, opts ...Option) *Driver {
	d := &Driver{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run exports every project of every namespace under the configured
// root and returns the run summary.
//
// An error return means a fatal setup failure: nothing could be
// enumerated, nothing was in flight. All per-project and per-namespace
// failures are folded into the summary instead, since one failure must
// never abort the rest of the crawl. Cancellation is observed between
// projects; the summary of an interrupted run is still returned.
func (d *Driver) Run(ctx context.Context) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RootNamespace: d.cfg.RootNamespace,
		StartTime:     time.Now(),
	}

	namespaces, err := d.namespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating namespaces under %q: %w", d.cfg.RootNamespace, err)
	}
	summary.Namespaces = len(namespaces)

	d.logger.Info("starting export",
		"root", d.cfg.RootNamespace,
		"namespaces", len(namespaces),
		"workers", d.cfg.Workers,
	)

	for _, namespace := range namespaces {
		if err := d.exportNamespace(ctx, namespace, summary); err != nil {
			// Only cancellation propagates; everything else became a
			// summary entry already.
			summary.Interrupted = true
			break
		}
	}

	summary.EndTime = time.Now()
	return summary, nil
}

// namespaces resolves the namespace set for this run.
func (d *Driver) namespaces(ctx context.Context) ([]string, error) {
	if d.cfg.OnlyNamespace != "" {
		return []string{d.cfg.OnlyNamespace}, nil
	}
	return d.fetcher.ListNamespaces(ctx, d.cfg.RootNamespace)
}

// exportNamespace processes one namespace: load its checkpoint, list
// its projects, export each, and write the manifest. The manifest is
// written even when the namespace is cut short by cancellation, so a
// partial run still describes what it produced.
func (d *Driver) exportNamespace(ctx context.Context, namespace string, summary *model.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store := checkpoint.New(d.cfg.StateDir, namespace)
	if err := d.loadCheckpoint(store); err != nil {
		d.failNamespace(namespace, summary, err)
		return nil
	}

	projects, err := d.fetcher.ListProjects(ctx, namespace)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.failNamespace(namespace, summary, err)
		return nil
	}

	overrides := d.cfg.NamespaceOverrides(namespace)
	projects = d.withoutExcluded(projects, overrides)

	d.logger.Info("exporting namespace",
		"namespace", namespace,
		"projects", len(projects),
		"alreadyComplete", store.Count(),
	)

	var results []model.ProjectResult
	if d.cfg.Workers > 1 {
		results, err = d.exportConcurrent(ctx, projects, store, overrides, summary)
	} else {
		results, err = d.exportSequential(ctx, projects, store, overrides, summary)
	}

	if len(results) > 0 {
		dir := NamespaceDir(d.cfg.OutputDir, namespace)
		if merr := WriteManifest(dir, results); merr != nil {
			d.logger.Error("writing manifest failed",
				"namespace", namespace,
				"error", merr.Error(),
			)
		}
	}
	return err
}

// loadCheckpoint loads or, with the force flag, resets the namespace
// checkpoint.
func (d *Driver) loadCheckpoint(store *checkpoint.Store) error {
	if d.cfg.Force {
		return store.Reset()
	}
	return store.Load()
}

// withoutExcluded drops projects the namespace config excludes.
// Excluded projects are never visited: no artifacts, no checkpoint
// entry, no manifest row.
func (d *Driver) withoutExcluded(projects []model.Project, overrides config.NamespaceConfig) []model.Project {
	if len(overrides.SkipProjects) == 0 {
		return projects
	}
	kept := projects[:0]
	for _, project := range projects {
		if overrides.ShouldSkip(project.UUID) {
			d.logger.Debug("project excluded by config",
				"namespace", project.Namespace,
				"project", project.Name,
				"uuid", project.UUID,
			)
			continue
		}
		kept = append(kept, project)
	}
	return kept
}

// exportSequential is the default mode: one project fully finished
// before the next starts, so a crash loses at most one project.
func (d *Driver) exportSequential(ctx context.Context, projects []model.Project, store *checkpoint.Store, overrides config.NamespaceConfig, summary *model.RunSummary) ([]model.ProjectResult, error) {
	results := make([]model.ProjectResult, 0, len(projects))
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result := d.exportProject(ctx, project, store, overrides)
		results = append(results, result)
		summary.Add(result)
		d.notify(result)
	}
	return results, nil
}

// exportConcurrent processes projects with a bounded worker pool.
// Checkpoint writes stay serialized inside the store; the summary and
// result slice are guarded here. The crash guarantee weakens to "up to
// Workers in-flight projects lost".
func (d *Driver) exportConcurrent(ctx context.Context, projects []model.Project, store *checkpoint.Store, overrides config.NamespaceConfig, summary *model.RunSummary) ([]model.ProjectResult, error) {
	var (
		mu      sync.Mutex
		results = make([]model.ProjectResult, 0, len(projects))
	)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(d.cfg.Workers)

	for _, project := range projects {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := d.exportProject(gctx, project, store, overrides)
			mu.Lock()
			results = append(results, result)
			summary.Add(result)
			mu.Unlock()
			d.notify(result)
			return nil
		})
	}

	err := group.Wait()
	return results, err
}

// exportProject runs one project through the state machine. It always
// returns a terminal result and never an error: failures are data here.
func (d *Driver) exportProject(ctx context.Context, project model.Project, store *checkpoint.Store, overrides config.NamespaceConfig) model.ProjectResult {
	result := model.ProjectResult{
		Project:         project,
		FindingsFile:    ArtifactFileName(model.ArtifactFindings, project.UUID),
		ScanResultsFile: ArtifactFileName(model.ArtifactScanResults, project.UUID),
	}

	if store.IsComplete(project.UUID) {
		return d.skipProject(result, store)
	}

	start := time.Now()
	dir := NamespaceDir(d.cfg.OutputDir, project.Namespace)

	findings, err := d.fetcher.ProjectFindings(ctx, project.Namespace, project.UUID, overrides.FindingsPageSize)
	if err != nil {
		return d.failProject(result, start, fmt.Errorf("fetching findings: %w", err))
	}

	scanResults, err := d.fetcher.ProjectScanResults(ctx, project.Namespace, project.UUID, overrides.ScanResultsPageSize)
	if err != nil {
		return d.failProject(result, start, fmt.Errorf("fetching scan results: %w", err))
	}

	// Both fetches succeeded; persist both artifacts, then checkpoint.
	// Order matters: the checkpoint entry is the last write, so its
	// presence always implies both files exist in full.
	if err := WriteArtifact(filepath.Join(dir, result.FindingsFile), findings); err != nil {
		return d.failProject(result, start, err)
	}
	if err := WriteArtifact(filepath.Join(dir, result.ScanResultsFile), scanResults); err != nil {
		return d.failProject(result, start, err)
	}
	if err := store.MarkComplete(project.UUID); err != nil {
		return d.failProject(result, start, err)
	}

	result.State = model.StateCompleted
	result.FindingsCount = len(findings)
	result.ScanResultsCount = len(scanResults)
	result.Elapsed = time.Since(start)

	d.logger.Info("project exported",
		"namespace", project.Namespace,
		"project", project.Name,
		"uuid", project.UUID,
		"findings", result.FindingsCount,
		"scanResults", result.ScanResultsCount,
		"elapsed", result.Elapsed.Round(time.Millisecond).String(),
	)
	return result
}

// skipProject fills in a Skipped result. The record counts are re-read
// from the existing artifacts so a resumed run's manifest matches what
// is actually on disk.
func (d *Driver) skipProject(result model.ProjectResult, store *checkpoint.Store) model.ProjectResult {
	result.State = model.StateSkipped

	dir := NamespaceDir(d.cfg.OutputDir, result.Project.Namespace)
	for _, artifact := range []struct {
		file  string
		count *int
	}{
		{result.FindingsFile, &result.FindingsCount},
		{result.ScanResultsFile, &result.ScanResultsCount},
	} {
		count, err := CountRecords(filepath.Join(dir, artifact.file))
		if err != nil {
			// Checkpointed but unreadable artifact. The verify
			// subcommand is the tool for flagging this properly.
			d.logger.Warn("checkpointed artifact unreadable",
				"namespace", result.Project.Namespace,
				"file", artifact.file,
				"error", err.Error(),
			)
			continue
		}
		*artifact.count = count
	}

	completedAt, _ := store.CompletedAt(result.Project.UUID)
	d.logger.Info("project skipped",
		"namespace", result.Project.Namespace,
		"project", result.Project.Name,
		"uuid", result.Project.UUID,
		"completedAt", completedAt.Format(time.RFC3339),
	)
	return result
}

// failProject fills in a Failed result. No artifact of this attempt was
// renamed into place after the failed step, and the checkpoint was not
// touched, so the next run redoes the project from scratch.
func (d *Driver) failProject(result model.ProjectResult, start time.Time, err error) model.ProjectResult {
	result.State = model.StateFailed
	result.Err = err
	result.Elapsed = time.Since(start)
	result.FindingsFile = ""
	result.ScanResultsFile = ""

	d.logger.Error("project export failed",
		"namespace", result.Project.Namespace,
		"project", result.Project.Name,
		"uuid", result.Project.UUID,
		"error", err.Error(),
	)
	return result
}

// failNamespace records a whole-namespace failure (checkpoint unreadable
// or project listing failed) as one failed result so it reaches the
// summary and the exit code, then lets the run continue with the next
// namespace.
func (d *Driver) failNamespace(namespace string, summary *model.RunSummary, err error) {
	d.logger.Error("namespace export failed",
		"namespace", namespace,
		"error", err.Error(),
	)
	result := model.ProjectResult{
		Project: model.Project{
			Name:      "(namespace)",
			Namespace: namespace,
		},
		State: model.StateFailed,
		Err:   err,
	}
	summary.Add(result)
	d.notify(result)
}

// notify delivers one terminal result to every observer.
func (d *Driver) notify(result model.ProjectResult) {
	for _, observer := range d.observers {
		observer(result)
	}
}
