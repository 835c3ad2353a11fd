package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrCorruptState is returned when a state file exists but cannot be
// parsed. The namespace fails rather than being silently re-exported;
// the operator decides whether to delete the file or start with --force.
var ErrCorruptState = errors.New("checkpoint: corrupt state file")

// Store tracks which projects of one namespace have been fully exported.
//
// Every MarkComplete persists the whole state atomically, so a crash at
// any point leaves either the previous state or the new one on disk,
// never a truncated file. The zero value is not usable; construct with
// New and call Load before use.
type Store struct {
	path string

	mu   sync.Mutex
	done map[string]time.Time
}

// New returns a store backed by the namespace's state file under
// stateDir. Nothing is read or written until Load.
func New(stateDir, namespace string) *Store {
	return &Store{
		path: filepath.Join(stateDir, stateFileName(namespace)),
		done: make(map[string]time.Time),
	}
}

// stateFileName derives the per-namespace file name. Namespace
// separators are flattened so the name stays a single path element.
func stateFileName(namespace string) string {
	flat := strings.ReplaceAll(namespace, "/", "_")
	return "processed_" + flat + ".json"
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file means a fresh namespace and
// is not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.done = make(map[string]time.Time)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading checkpoint %s: %w", s.path, err)
	}

	done := make(map[string]time.Time)
	if err := json.Unmarshal(data, &done); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorruptState, s.path, err)
	}
	s.done = done
	return nil
}

// IsComplete reports whether the project was recorded as fully exported.
func (s *Store) IsComplete(projectUUID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[projectUUID]
	return ok
}

// MarkComplete records the project as exported and persists the state.
// Call it only after every artifact of the project is durably written.
func (s *Store) MarkComplete(projectUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done[projectUUID] = time.Now().UTC()
	if err := s.persistLocked(); err != nil {
		// Roll back so memory never claims more than disk.
		delete(s.done, projectUUID)
		return err
	}
	return nil
}

// CompletedAt returns when the project was recorded, if it was.
func (s *Store) CompletedAt(projectUUID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.done[projectUUID]
	return at, ok
}

// Count returns the number of recorded projects.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done)
}

// Reset discards all recorded progress, in memory and on disk.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done = make(map[string]time.Time)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing checkpoint %s: %w", s.path, err)
	}
	return nil
}

// persistLocked writes the state atomically: temp file in the same
// directory, then rename. Callers hold s.mu.
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(s.done, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // Write error takes precedence
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("writing temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("closing temp checkpoint: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("setting checkpoint permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // Best-effort cleanup
		return fmt.Errorf("replacing checkpoint %s: %w", s.path, err)
	}
	return nil
}
