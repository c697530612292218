package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"vouchd/pkg/logger"
	"vouchd/pkg/models"
)

// FileAdapter persists the whole snapshot as a single JSON document,
// written atomically via temp file + rename.
type FileAdapter struct {
	path string
}

// NewFileAdapter returns an adapter writing to the given file path.
func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{path: path}
}

// Load reads the snapshot file. A missing file yields an empty snapshot;
// a corrupt file is logged and likewise degrades to empty.
func (f *FileAdapter) Load() (models.Snapshot, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Snapshot{}, nil
		}
		logger.Warn("snapshot_load_failed", "path", f.path, "error", err)
		return models.Snapshot{}, nil
	}
	var snap models.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		logger.Warn("snapshot_corrupt", "path", f.path, "error", err)
		return models.Snapshot{}, nil
	}
	if snap == nil {
		snap = models.Snapshot{}
	}
	return snap, nil
}

// Save writes the snapshot atomically.
func (f *FileAdapter) Save(snap models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".vouches-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, f.path); err != nil {
		_ = os.Remove(name)
		return err
	}
	_ = os.Chmod(f.path, 0o600)
	return nil
}

// Close is a no-op for the file adapter.
func (f *FileAdapter) Close() error { return nil }
