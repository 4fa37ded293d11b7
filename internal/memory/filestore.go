package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists memory snapshots as a single human-readable JSON
// document, rewritten in full on every save. Writes go through a temp
// file and rename so a crash mid-write leaves the previous snapshot
// intact.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to path. Parent directories
// are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Save(s Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating memory directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding memory snapshot: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing memory snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing memory snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. A missing file yields an empty
// snapshot and no error; a file that fails to parse returns an error so
// the caller can log and fall back to empty state.
func (f *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("reading memory snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("parsing memory snapshot %s: %w", f.path, err)
	}
	return s, nil
}
