package report

import (
	"context"
	"errors"
	"sync"

	"github.com/hyperjump/docscan/internal/models"
	"github.com/hyperjump/docscan/internal/storage"
)

// errNoRun is returned when events arrive outside StartRun/FinishRun.
var errNoRun = errors.New("store sink: no active run")

// StoreSink persists events into a storage.Storage under the current run.
// It does not own the store; Close leaves it open.
type StoreSink struct {
	store storage.Storage
	mu    sync.Mutex
	runID string
}

// NewStoreSink returns a sink writing into store.
func NewStoreSink(store storage.Storage) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) currentRun() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID == "" {
		return "", errNoRun
	}
	return s.runID, nil
}

// StartRun creates the run row and makes it the target of later events.
func (s *StoreSink) StartRun(ctx context.Context, run *models.RunSummary) error {
	if err := s.store.CreateRun(ctx, run); err != nil {
		return err
	}
	s.mu.Lock()
	s.runID = run.RunID
	s.mu.Unlock()
	return nil
}

// Match stores a match event under the current run.
func (s *StoreSink) Match(ctx context.Context, e models.MatchEvent) error {
	runID, err := s.currentRun()
	if err != nil {
		return err
	}
	return s.store.RecordMatch(ctx, runID, e)
}

// FileOutcome stores a file outcome under the current run.
func (s *StoreSink) FileOutcome(ctx context.Context, o models.FileOutcome) error {
	runID, err := s.currentRun()
	if err != nil {
		return err
	}
	return s.store.RecordOutcome(ctx, runID, o)
}

// FinishRun writes the final counters and clears the current run.
func (s *StoreSink) FinishRun(ctx context.Context, run *models.RunSummary) error {
	s.mu.Lock()
	s.runID = ""
	s.mu.Unlock()
	return s.store.UpdateRun(ctx, run)
}

// Close is a no-op; the store is owned by the caller.
func (s *StoreSink) Close() error { return nil }
