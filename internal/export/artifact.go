package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/scanexport/internal/model"
)

// ArtifactFileName returns the base name of one artifact file,
// e.g. "findings_<uuid>.json".
func ArtifactFileName(kind model.ArtifactKind, projectUUID string) string {
	return kind.String() + "_" + projectUUID + ".json"
}

// NamespaceDir returns the directory holding one namespace's artifacts.
func NamespaceDir(outputDir, namespace string) string {
	return filepath.Join(outputDir, namespace)
}

// WriteArtifact persists records as a pretty-printed JSON array,
// atomically: the data goes to a temp file in the target directory and
// is renamed into place only once fully written. A reader never sees a
// half-written artifact, and a crash leaves either the old file or the
// new one.
func WriteArtifact(path string, records []model.Record) error {
	if records == nil {
		// An empty export is still a valid artifact: "[]", not "null".
		records = []model.Record{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding artifact %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // Write error takes precedence
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("writing temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("closing temp artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("setting artifact permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("replacing artifact %s: %w", path, err)
	}
	return nil
}

// CountRecords returns the number of records in an artifact file.
// Records stay opaque; only the array length is inspected.
func CountRecords(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading artifact %s: %w", path, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("parsing artifact %s: %w", path, err)
	}
	return len(records), nil
}
