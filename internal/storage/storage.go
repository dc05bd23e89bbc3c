// Package storage defines the persistence interface for scan runs and their results.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/docscan/internal/models"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines run, outcome and match persistence operations.
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *models.RunSummary) error
	UpdateRun(ctx context.Context, run *models.RunSummary) error
	GetRun(ctx context.Context, id string) (*models.RunSummary, error)
	LatestRun(ctx context.Context) (*models.RunSummary, error)
	ListRuns(ctx context.Context, offset, limit int) ([]*models.RunSummary, error)

	// Per-file records
	RecordOutcome(ctx context.Context, runID string, outcome models.FileOutcome) error
	RecordMatch(ctx context.Context, runID string, event models.MatchEvent) error
	ListOutcomes(ctx context.Context, runID string, status models.FileStatus, offset, limit int) ([]models.FileOutcome, error)
	ListMatches(ctx context.Context, runID string, offset, limit int) ([]models.MatchEvent, error)

	// Stats
	CountRuns(ctx context.Context) (int64, error)
	CountMatches(ctx context.Context) (int64, error)

	Close() error
}
