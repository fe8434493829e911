package store

// Store defines the interface for run-record persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun atomically saves the record under its RunID, overwriting any
	// earlier record for the same run.
	SaveRun(record *RunRecord) error

	// LoadRun retrieves the record for the given run.
	// Returns ErrNotFound if no record exists for this runID.
	LoadRun(runID string) (*RunRecord, error)

	// ListRuns returns metadata for all stored runs, oldest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the record and its trace.
	// Returns ErrNotFound if no record exists for this runID.
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run record or trace.
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
