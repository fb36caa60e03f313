package store

import (
	"fmt"
	"path/filepath"
)

// Store persists completed run records.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun stores a record under rec.ID, replacing any existing one.
	SaveRun(rec *Record) error

	// LoadRun retrieves the record for the given run.
	// Returns ErrNotFound if no record exists for this runID.
	LoadRun(runID string) (*Record, error)

	// ListRuns returns metadata for all stored runs, newest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the record and its trace.
	// Returns ErrNotFound if no record exists for this runID.
	DeleteRun(runID string) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by NewStore.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

// NewStore opens a store of the given kind rooted at dataDir. The SQLite
// backend keeps its database at <dataDir>/runs.db; traces always live on
// the filesystem.
func NewStore(kind, dataDir string) (Store, error) {
	switch kind {
	case "", BackendFS:
		return NewFSStore(dataDir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dataDir, "runs.db"))
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
