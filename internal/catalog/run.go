package catalog

import (
	"context"
	"time"
)

// RunStatus is the state of a ledger entry
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunError     RunStatus = "error"
	RunCancelled RunStatus = "cancelled"
)

// Run is one Run Ledger entry
type Run struct {
	ID            string
	Type          string
	Source        string
	Status        RunStatus
	Total         int
	MoviesAdded   int
	MoviesUpdated int
	MoviesSkipped int
	MoviesFailed  int
	EpisodesAdded int
	Duration      time.Duration
	Message       string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// Ledger records one row per run. A finished row is never modified again.
type Ledger interface {
	// StartRun persists a new running entry, assigning ID and StartedAt when unset
	StartRun(ctx context.Context, run *Run) error
	// UpdateRunProgress refreshes the counters of a running entry
	UpdateRunProgress(ctx context.Context, run *Run) error
	// FinishRun finalizes a running entry; finishing twice returns ErrRunFinished
	FinishRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	// GetRun returns ErrNotFound for an unknown id
	GetRun(ctx context.Context, id string) (*Run, error)
}

// Finished reports whether the entry reached a terminal status
func (r *Run) Finished() bool {
	return r.Status != "" && r.Status != RunRunning
}
