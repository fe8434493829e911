package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// FSStore implements the Store interface using filesystem-based persistence.
// Records are stored in a directory structure: <baseDir>/runs/<runID>/
//
// Thread-safety: writes go through a temp file and rename, so no locks are
// needed.
type FSStore struct {
	baseDir string // Root directory for all run data (e.g., "./data")
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// NewRunID returns a fresh random run identifier
func NewRunID() string {
	return uuid.NewString()
}

// BaseDir returns the root directory of the store
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func runDir(baseDir, runID string) string {
	return filepath.Join(baseDir, "runs", runID)
}

func (fs *FSStore) recordPath(runID string) string {
	return filepath.Join(runDir(fs.baseDir, runID), "run.json")
}

// SaveRun atomically saves a run record.
// Uses temp file + rename pattern to ensure atomicity.
func (fs *FSStore) SaveRun(record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("run record cannot be nil")
	}
	if record.RunID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	dir := runDir(fs.baseDir, record.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run record: %w", err)
	}

	finalPath := fs.recordPath(record.RunID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp run file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}

	slog.Debug("Run saved", "runID", record.RunID, "path", finalPath)
	return nil
}

// LoadRun retrieves the record for the given run.
func (fs *FSStore) LoadRun(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	path := fs.recordPath(runID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize run record: %w", err)
	}

	slog.Debug("Run loaded", "runID", runID, "path", path)
	return &record, nil
}

// ListRuns returns metadata for all stored runs, oldest first.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		runID := entry.Name()
		if _, err := os.Stat(fs.recordPath(runID)); os.IsNotExist(err) {
			continue
		}

		record, err := fs.LoadRun(runID)
		if err != nil {
			slog.Warn("Failed to load run for listing", "runID", runID, "error", err)
			continue
		}
		infos = append(infos, record.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})

	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the record and all associated artifacts.
func (fs *FSStore) DeleteRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	dir := runDir(fs.baseDir, runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "runID", runID, "path", dir)
	return nil
}
