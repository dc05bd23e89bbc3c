package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/docscan/internal/models"
	"github.com/hyperjump/docscan/internal/report"
	"github.com/hyperjump/docscan/internal/upload"
	"go.uber.org/zap"
)

// Extractor produces text for one file. Failures are carried in the returned document.
type Extractor interface {
	Extract(path string) models.ExtractedDocument
}

// Searcher finds rule matches in text.
type Searcher interface {
	Search(text string, mode models.SearchMode) []models.MatchRecord
}

// UploadPolicy decides what a failed upload does to the run.
type UploadPolicy int

const (
	// ContinueOnUploadError counts the failure and moves on to the next file.
	ContinueOnUploadError UploadPolicy = iota
	// AbortOnUploadError stops the run and returns the transfer error.
	AbortOnUploadError
)

// FileResult is what happened to one file.
type FileResult struct {
	Path     string
	Status   models.FileStatus
	Matches  []models.MatchRecord
	Uploaded bool
	// Err is the extraction failure for StatusError results.
	Err error
}

// Runner processes files one at a time. It keeps no per-file state between calls.
type Runner struct {
	extractor Extractor
	searcher  Searcher
	mode      models.SearchMode
	sink      report.Sink
	uploader  upload.Uploader
	policy    UploadPolicy
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a logger for per-file debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithUploader enables uploading of files with at least one match.
func WithUploader(u upload.Uploader, policy UploadPolicy) Option {
	return func(r *Runner) {
		r.uploader = u
		r.policy = policy
	}
}

// WithClock overrides the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner returns a Runner. A nil sink discards all events.
func NewRunner(extractor Extractor, searcher Searcher, mode models.SearchMode, sink report.Sink, opts ...Option) *Runner {
	if sink == nil {
		sink = report.Discard{}
	}
	r := &Runner{
		extractor: extractor,
		searcher:  searcher,
		mode:      mode,
		sink:      sink,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run scans root and processes every matching file in walk order. Cancellation is checked
// between files only; a file already being extracted runs to completion. The returned
// summary is always non-nil. The error is the context error when cancelled, or the
// transfer error when the upload policy aborts.
func (r *Runner) Run(ctx context.Context, root string, extensions []string) (*models.RunSummary, error) {
	run := r.StartRun(ctx, root)
	var runErr error
	for path, err := range Walk(root, extensions) {
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		if err != nil {
			r.logger.Warn("walk error", zap.String("path", path), zap.Error(err))
			continue
		}
		if _, err := r.ProcessFile(ctx, run, path); err != nil {
			runErr = err
			break
		}
	}
	r.FinishRun(ctx, run)
	return run, runErr
}

// StartRun opens a run and announces it to the sink.
func (r *Runner) StartRun(ctx context.Context, root string) *models.RunSummary {
	run := &models.RunSummary{
		RunID:     uuid.NewString(),
		Root:      root,
		StartedAt: r.now(),
	}
	if err := r.sink.StartRun(ctx, run); err != nil {
		r.logger.Error("report sink failed to start run", zap.String("run_id", run.RunID), zap.Error(err))
	}
	return run
}

// FinishRun stamps the finish time and hands the totals to the sink.
func (r *Runner) FinishRun(ctx context.Context, run *models.RunSummary) {
	run.FinishedAt = r.now()
	// the run is recorded even when ctx was cancelled
	if err := r.sink.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Error("report sink failed to finish run", zap.String("run_id", run.RunID), zap.Error(err))
	}
}

// ProcessFile extracts, searches, reports and, when there are matches, uploads one file.
// Extraction failures become an Error outcome and a nil error. A non-nil error is only
// returned for a failed upload under AbortOnUploadError.
func (r *Runner) ProcessFile(ctx context.Context, run *models.RunSummary, path string) (FileResult, error) {
	r.logger.Debug("processing file", zap.String("path", path))
	doc := r.extractor.Extract(path)
	ts := r.now()
	res := FileResult{Path: doc.Target.Path}
	if res.Path == "" {
		res.Path = path
	}

	if doc.Err != nil {
		res.Status = models.StatusError
		res.Err = doc.Err
		r.emitOutcome(ctx, models.FileOutcome{Timestamp: ts, Path: res.Path, Status: res.Status, Reason: doc.Err.Error()})
		run.Record(res.Status, 0)
		return res, nil
	}

	res.Matches = r.searcher.Search(doc.Text, r.mode)
	for _, m := range res.Matches {
		event := models.MatchEvent{
			Timestamp:   ts,
			Path:        res.Path,
			MatchedText: m.Text,
			FileExt:     doc.Target.Ext,
			Source:      m.Source,
			OCRFlag:     models.OCRPlaceholder,
		}
		if err := r.sink.Match(ctx, event); err != nil {
			r.logger.Error("report sink rejected match", zap.String("path", res.Path), zap.Error(err))
		}
	}
	res.Status = models.StatusNoMatch
	if len(res.Matches) > 0 {
		res.Status = models.StatusMatchFound
	}
	r.emitOutcome(ctx, models.FileOutcome{Timestamp: ts, Path: res.Path, Status: res.Status})
	run.Record(res.Status, len(res.Matches))

	if r.uploader == nil || len(res.Matches) == 0 {
		return res, nil
	}
	if err := r.uploader.Upload(ctx, res.Path); err != nil {
		run.UploadFailures++
		var terr *upload.TransferError
		if !errors.As(err, &terr) {
			err = &upload.TransferError{Path: res.Path, Err: err}
		}
		if r.policy == AbortOnUploadError {
			return res, fmt.Errorf("abort after upload failure: %w", err)
		}
		r.logger.Warn("upload failed, continuing", zap.String("path", res.Path), zap.Error(err))
		return res, nil
	}
	run.Uploads++
	res.Uploaded = true
	return res, nil
}

func (r *Runner) emitOutcome(ctx context.Context, o models.FileOutcome) {
	if err := r.sink.FileOutcome(ctx, o); err != nil {
		r.logger.Error("report sink rejected outcome", zap.String("path", o.Path), zap.Error(err))
	}
}
