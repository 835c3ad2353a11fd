package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These mirror the operational defaults the export tooling has always run
// with against the vendor API; several are generous because list endpoints
// stream very large paginated payloads.
const (
	// DefaultAPIURL is the base URL of the vendor's v1 REST API.
	DefaultAPIURL = "https://api.endorlabs.com/v1"

	// DefaultTimeout bounds every HTTP call. 10 minutes sounds extreme for
	// a single request, but a findings page for a large monorepo can take
	// minutes to materialize server-side.
	DefaultTimeout = 600 * time.Second

	// DefaultFindingsTimeout is the per-call timeout for findings pages.
	// Findings are the heaviest payloads, so they get their own bound and
	// a server-side timeout hint to match.
	DefaultFindingsTimeout = 240 * time.Second

	// DefaultScanResultsTimeout is the per-call timeout for scan-result pages.
	DefaultScanResultsTimeout = 200 * time.Second

	// DefaultMaxAttempts is the retry budget per HTTP call.
	DefaultMaxAttempts = 5

	// DefaultRetryBaseDelay is the backoff base. Delays double from here on
	// each attempt (1s, 2s, 4s, ...) with sub-second jitter added.
	DefaultRetryBaseDelay = 1 * time.Second

	// DefaultWorkers of 1 means sequential processing: one project fully
	// exported (both artifacts plus checkpoint) before the next starts.
	// This keeps the crash guarantee at "at most one project lost".
	DefaultWorkers = 1

	// DefaultFindingsPageSize starts small to avoid server-side timeouts;
	// the paginator halves it further on repeated page failures.
	DefaultFindingsPageSize = 100

	// DefaultScanResultsPageSize is larger because scan-result records are
	// much smaller than findings.
	DefaultScanResultsPageSize = 200

	// DefaultMinPageSize is the floor for adaptive page-size reduction.
	// Below this, shrinking pages no longer helps and the failure is real.
	DefaultMinPageSize = 50

	// DefaultOutputDir is where per-namespace artifact directories live.
	DefaultOutputDir = "exports"

	// DefaultStateDir holds the per-namespace checkpoint files. Kept beside
	// the output directory so a resumed run finds both together.
	DefaultStateDir = ".state"

	// AppName is the application name used for XDG directory paths.
	AppName = "scanexport"
)

// Config holds all configuration options for scanexport.
// This struct is populated from CLI flags and passed through the
// application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., RetryConfig, OutputConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant
// benefit.
type Config struct {
	// APIURL is the base URL of the vendor API, without a trailing slash.
	APIURL string

	// RootNamespace is the namespace the crawl starts from. Namespace
	// discovery traverses child namespaces from here.
	RootNamespace string

	// OnlyNamespace, when non-empty, restricts the run to exactly this
	// namespace instead of discovering the full set.
	OnlyNamespace string

	// Force re-exports every project, ignoring existing checkpoints.
	Force bool

	// Workers is the number of projects processed concurrently within a
	// namespace. 1 (the default) is sequential mode. Values above 1 weaken
	// the crash guarantee: up to Workers in-flight projects may be lost.
	Workers int

	// Timeout bounds every HTTP call that doesn't carry its own bound.
	Timeout time.Duration

	// FindingsTimeout and ScanResultsTimeout bound the artifact page
	// fetches individually.
	FindingsTimeout    time.Duration
	ScanResultsTimeout time.Duration

	// MaxAttempts is the retry budget for one HTTP call.
	MaxAttempts int

	// RetryBaseDelay is the exponential backoff base delay.
	RetryBaseDelay time.Duration

	// OutputDir is the root of the export tree:
	// <OutputDir>/<namespace>/findings_<uuid>.json etc.
	OutputDir string

	// StateDir holds per-namespace checkpoint files.
	StateDir string

	// HistoryDBDir is the directory for the export history database.
	// Defaults to the XDG data directory.
	HistoryDBDir string

	// SaveHistory controls whether run outcomes are recorded in the
	// history database. History failures never fail an export.
	SaveHistory bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// MarkdownReport switches the run summary from plain text to Markdown.
	MarkdownReport bool

	// ReportFile writes the run summary to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is the path to the YAML configuration file. If empty,
	// the tool searches for .scanexport in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// NamespaceConfigs holds per-namespace overrides loaded from the
	// config file. May be nil when no config file exists.
	NamespaceConfigs *File
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (timeouts, page sizes).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		APIURL:             DefaultAPIURL,
		Workers:            DefaultWorkers,
		Timeout:            DefaultTimeout,
		FindingsTimeout:    DefaultFindingsTimeout,
		ScanResultsTimeout: DefaultScanResultsTimeout,
		MaxAttempts:        DefaultMaxAttempts,
		RetryBaseDelay:     DefaultRetryBaseDelay,
		OutputDir:          DefaultOutputDir,
		StateDir:           DefaultStateDir,
		HistoryDBDir:       XDGDataDir(),
		SaveHistory:        true,
	}
}

// XDGDataDir returns the XDG data directory for scanexport.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/scanexport
// On macOS: ~/Library/Application Support/scanexport
// On Windows: %LOCALAPPDATA%\scanexport
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for scanexport.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any network traffic.
func (c *Config) Validate() error {
	if c.RootNamespace == "" {
		return ErrNoNamespace
	}

	if c.Timeout <= 0 || c.FindingsTimeout <= 0 || c.ScanResultsTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	if c.RetryBaseDelay < 0 {
		return ErrInvalidRetryDelay
	}

	if c.OutputDir == "" || c.StateDir == "" {
		return ErrInvalidDirectory
	}

	return nil
}

// NamespaceOverrides returns the override block for a namespace, merged
// over the file's defaults. The zero value is returned when no config
// file was loaded.
func (c *Config) NamespaceOverrides(namespace string) NamespaceConfig {
	if c.NamespaceConfigs == nil {
		return NamespaceConfig{}
	}
	return c.NamespaceConfigs.GetNamespaceConfig(namespace)
}
