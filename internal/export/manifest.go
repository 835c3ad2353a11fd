package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nao1215/scanexport/internal/model"
)

// ManifestFileName is the per-namespace manifest written next to the
// artifact files. It is the input to the verify subcommand.
const ManifestFileName = "export_manifest.csv"

// manifestHeader is the manifest's fixed column set.
var manifestHeader = []string{
	"project_uuid",
	"project_name",
	"findings_filename",
	"scanresults_filename",
	"findings_count",
	"scanresults_count",
}

// ManifestEntry is one manifest row: a project with its two artifact
// files and their record counts at export time.
type ManifestEntry struct {
	ProjectUUID      string
	ProjectName      string
	FindingsFile     string
	ScanResultsFile  string
	FindingsCount    int
	ScanResultsCount int
}

// WriteManifest writes the namespace manifest for the given results.
// Failed projects have no artifacts and are excluded; skipped projects
// are included so a resumed run still produces a complete manifest.
// The write is atomic, like the artifacts it describes.
func WriteManifest(namespaceDir string, results []model.ProjectResult) error {
	if err := os.MkdirAll(namespaceDir, 0750); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	path := filepath.Join(namespaceDir, ManifestFileName)
	tmp, err := os.CreateTemp(namespaceDir, ManifestFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	writer := csv.NewWriter(tmp)
	if err := writer.Write(manifestHeader); err != nil {
		_ = tmp.Close()        //nolint:errcheck // Write error takes precedence
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("writing manifest header: %w", err)
	}
	for _, result := range results {
		if result.State == model.StateFailed {
			continue
		}
		row := []string{
			result.Project.UUID,
			result.Project.Name,
			result.FindingsFile,
			result.ScanResultsFile,
			strconv.Itoa(result.FindingsCount),
			strconv.Itoa(result.ScanResultsCount),
		}
		if err := writer.Write(row); err != nil {
			_ = tmp.Close()        //nolint:errcheck // Write error takes precedence
			_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
			return fmt.Errorf("writing manifest row for %s: %w", result.Project.UUID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = tmp.Close()        //nolint:errcheck // Flush error takes precedence
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("flushing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("replacing manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest parses a namespace manifest back into entries.
func ReadManifest(path string) ([]ManifestEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // Read-only file

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("manifest %s is empty", path)
	}

	entries := make([]ManifestEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(manifestHeader) {
			return nil, fmt.Errorf("manifest %s row %d: %d columns, want %d",
				path, i+2, len(row), len(manifestHeader))
		}
		findingsCount, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("manifest %s row %d: findings count: %w", path, i+2, err)
		}
		scanResultsCount, err := strconv.Atoi(row[5])
		if err != nil {
			return nil, fmt.Errorf("manifest %s row %d: scan results count: %w", path, i+2, err)
		}
		entries = append(entries, ManifestEntry{
			ProjectUUID:      row[0],
			ProjectName:      row[1],
			FindingsFile:     row[2],
			ScanResultsFile:  row[3],
			FindingsCount:    findingsCount,
			ScanResultsCount: scanResultsCount,
		})
	}
	return entries, nil
}
