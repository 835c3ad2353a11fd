package verify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/scanexport/internal/export"
)

// ErrNothingToVerify is returned when the export directory exists but
// contains no manifest at all.
var ErrNothingToVerify = errors.New("verify: no manifest found")

// Status classifies one project's verification outcome.
type Status string

// Verification outcomes per project.
const (
	// StatusMatch means both artifacts exist and their record counts
	// equal the manifest's.
	StatusMatch Status = "match"

	// StatusMismatch means both artifacts exist but at least one count
	// differs from the manifest.
	StatusMismatch Status = "mismatch"

	// StatusMissing means at least one artifact file is absent or
	// unreadable.
	StatusMissing Status = "missing"
)

// ProjectCheck is the verification result for one manifest row.
type ProjectCheck struct {
	// Entry is the manifest row being checked.
	Entry export.ManifestEntry

	// Status is the outcome.
	Status Status

	// FindingsOnDisk and ScanResultsOnDisk are the counts actually
	// found. Negative when the file could not be read.
	FindingsOnDisk    int
	ScanResultsOnDisk int

	// Detail explains missing or unreadable artifacts.
	Detail string
}

// NamespaceResult aggregates the checks of one namespace.
type NamespaceResult struct {
	// Namespace is the namespace directory that was checked.
	Namespace string

	// Checks holds one entry per manifest row, in manifest order.
	Checks []ProjectCheck

	// Matched, Mismatched, and Missing count checks by status.
	Matched    int
	Mismatched int
	Missing    int
}

// Clean reports whether every project of the namespace verified.
func (r *NamespaceResult) Clean() bool {
	return r.Mismatched == 0 && r.Missing == 0
}

// Result is a whole-tree verification outcome.
type Result struct {
	// Namespaces holds per-namespace results, sorted by namespace.
	Namespaces []NamespaceResult
}

// Clean reports whether every namespace verified.
func (r *Result) Clean() bool {
	for i := range r.Namespaces {
		if !r.Namespaces[i].Clean() {
			return false
		}
	}
	return true
}

// Totals sums the per-namespace counters.
func (r *Result) Totals() (matched, mismatched, missing int) {
	for i := range r.Namespaces {
		matched += r.Namespaces[i].Matched
		mismatched += r.Namespaces[i].Mismatched
		missing += r.Namespaces[i].Missing
	}
	return matched, mismatched, missing
}

// Namespace verifies one namespace's manifest against its artifacts.
// A missing manifest is an error: there is nothing to check against.
func Namespace(outputDir, namespace string) (*NamespaceResult, error) {
	dir := export.NamespaceDir(outputDir, namespace)
	entries, err := export.ReadManifest(filepath.Join(dir, export.ManifestFileName))
	if err != nil {
		return nil, err
	}

	result := &NamespaceResult{Namespace: namespace}
	for _, entry := range entries {
		check := checkProject(dir, entry)
		result.Checks = append(result.Checks, check)
		switch check.Status {
		case StatusMatch:
			result.Matched++
		case StatusMismatch:
			result.Mismatched++
		case StatusMissing:
			result.Missing++
		}
	}
	return result, nil
}

// All verifies every namespace directory under outputDir that carries a
// manifest. The export directory itself must exist; an export tree
// without a single manifest is ErrNothingToVerify.
func All(outputDir string) (*Result, error) {
	dirEntries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("reading export directory %s: %w", outputDir, err)
	}

	result := &Result{}
	for _, dirEntry := range dirEntries {
		if !dirEntry.IsDir() {
			continue
		}
		manifest := filepath.Join(outputDir, dirEntry.Name(), export.ManifestFileName)
		if _, err := os.Stat(manifest); err != nil {
			continue
		}
		nsResult, err := Namespace(outputDir, dirEntry.Name())
		if err != nil {
			return nil, err
		}
		result.Namespaces = append(result.Namespaces, *nsResult)
	}

	if len(result.Namespaces) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNothingToVerify, outputDir)
	}
	return result, nil
}

// checkProject compares one manifest row with the files on disk.
func checkProject(dir string, entry export.ManifestEntry) ProjectCheck {
	check := ProjectCheck{
		Entry:             entry,
		FindingsOnDisk:    -1,
		ScanResultsOnDisk: -1,
	}

	findings, findingsErr := export.CountRecords(filepath.Join(dir, entry.FindingsFile))
	if findingsErr == nil {
		check.FindingsOnDisk = findings
	}
	scanResults, scanResultsErr := export.CountRecords(filepath.Join(dir, entry.ScanResultsFile))
	if scanResultsErr == nil {
		check.ScanResultsOnDisk = scanResults
	}

	switch {
	case findingsErr != nil:
		check.Status = StatusMissing
		check.Detail = findingsErr.Error()
	case scanResultsErr != nil:
		check.Status = StatusMissing
		check.Detail = scanResultsErr.Error()
	case findings != entry.FindingsCount || scanResults != entry.ScanResultsCount:
		check.Status = StatusMismatch
		check.Detail = fmt.Sprintf("findings %d/%d, scan results %d/%d (on disk/manifest)",
			findings, entry.FindingsCount, scanResults, entry.ScanResultsCount)
	default:
		check.Status = StatusMatch
	}
	return check
}
