package report

import (
	"context"

	"github.com/hyperjump/docscan/internal/models"
	"go.uber.org/zap"
)

// LogSink mirrors events to a zap logger: outcomes at info (errors at warn), matches at debug.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// StartRun logs the run start.
func (s *LogSink) StartRun(_ context.Context, run *models.RunSummary) error {
	s.logger.Info("scan started", zap.String("run_id", run.RunID), zap.String("root", run.Root))
	return nil
}

// Match logs the event at debug level.
func (s *LogSink) Match(_ context.Context, e models.MatchEvent) error {
	s.logger.Debug("match",
		zap.String("path", e.Path),
		zap.String("text", e.MatchedText),
		zap.String("source", e.Source))
	return nil
}

// FileOutcome logs the outcome, at warn level for errors.
func (s *LogSink) FileOutcome(_ context.Context, o models.FileOutcome) error {
	fields := []zap.Field{zap.String("path", o.Path), zap.String("status", string(o.Status))}
	if o.Status == models.StatusError {
		s.logger.Warn("file processed", append(fields, zap.String("reason", o.Reason))...)
		return nil
	}
	s.logger.Info("file processed", fields...)
	return nil
}

// FinishRun logs the run counters and elapsed time.
func (s *LogSink) FinishRun(_ context.Context, run *models.RunSummary) error {
	s.logger.Info("scan finished",
		zap.String("run_id", run.RunID),
		zap.Int("files", run.Files),
		zap.Int("matched", run.Matched),
		zap.Int("errors", run.Errors),
		zap.Int("matches", run.Matches),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	return nil
}

// Close flushes the logger.
func (s *LogSink) Close() error {
	_ = s.logger.Sync()
	return nil
}
