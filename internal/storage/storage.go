package storage

import (
	"context"
	"time"

	"github.com/michaelbrown/gauntlet/internal/harness"
)

// RunStatus records how a test run ended.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run is the stored record of one harness run.
type Run struct {
	ID          string          `json:"id"`
	Language    string          `json:"language"`
	Version     string          `json:"version"`
	Status      RunStatus       `json:"status"`
	TestsTotal  int             `json:"tests_total"`
	TestsPassed int             `json:"tests_passed"`
	Error       string          `json:"error,omitempty"`
	Request     harness.Request `json:"request"`
	Result      *harness.Result `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RunListOptions controls filtering and pagination for ListRuns.
type RunListOptions struct {
	Status   RunStatus
	Language string
	Limit    int
	Offset   int
}

// Store is the persistence interface for run history.
type Store interface {
	// CreateRun inserts a new run. The ID field must be set by the caller.
	CreateRun(ctx context.Context, r *Run) error

	// GetRun returns a run by ID or ID prefix.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs ordered by created_at descending.
	ListRuns(ctx context.Context, opts RunListOptions) ([]Run, error)

	// DeleteRun removes a run.
	DeleteRun(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
