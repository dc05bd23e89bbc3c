// Package report receives per-file outcomes and per-match events from a scan and writes them out.
package report

import (
	"context"
	"errors"

	"github.com/hyperjump/docscan/internal/models"
)

// Sink consumes scan events. Calls for one run arrive in order: StartRun, then any mix of
// Match and FileOutcome, then FinishRun.
type Sink interface {
	StartRun(ctx context.Context, run *models.RunSummary) error
	Match(ctx context.Context, event models.MatchEvent) error
	FileOutcome(ctx context.Context, outcome models.FileOutcome) error
	FinishRun(ctx context.Context, run *models.RunSummary) error
	Close() error
}

// Multi fans every call out to all sinks. Errors from individual sinks are joined; one
// failing sink does not stop the others from receiving the event.
type Multi []Sink

// StartRun forwards the run start to every sink.
func (m Multi) StartRun(ctx context.Context, run *models.RunSummary) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.StartRun(ctx, run))
	}
	return errors.Join(errs...)
}

// Match forwards event to every sink.
func (m Multi) Match(ctx context.Context, event models.MatchEvent) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Match(ctx, event))
	}
	return errors.Join(errs...)
}

// FileOutcome forwards outcome to every sink.
func (m Multi) FileOutcome(ctx context.Context, outcome models.FileOutcome) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.FileOutcome(ctx, outcome))
	}
	return errors.Join(errs...)
}

// FinishRun forwards the finished run to every sink.
func (m Multi) FinishRun(ctx context.Context, run *models.RunSummary) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.FinishRun(ctx, run))
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Discard is a Sink that drops everything.
type Discard struct{}

// StartRun does nothing.
func (Discard) StartRun(context.Context, *models.RunSummary) error { return nil }

// Match does nothing.
func (Discard) Match(context.Context, models.MatchEvent) error { return nil }

// FileOutcome does nothing.
func (Discard) FileOutcome(context.Context, models.FileOutcome) error { return nil }

// FinishRun does nothing.
func (Discard) FinishRun(context.Context, *models.RunSummary) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }
