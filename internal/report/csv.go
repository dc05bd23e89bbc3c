package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperjump/docscan/internal/models"
)

const (
	logFilePrefix   = "DocCentrikLog_"
	matchFilePrefix = "DocCentrikMatchReport_"

	// TimestampLayout formats the Timestamp column of both CSV files.
	TimestampLayout = "2006-01-02 15:04:05"
)

var (
	logHeader   = []string{"Timestamp", "File Name", "Status"}
	matchHeader = []string{"Timestamp", "File Name", "Matching Word", "File Type", "Match Found In", "OCR or Non-OCR"}
)

// CSVSink appends events to daily CSV files in a directory: one file of per-file
// outcomes and one of match events. The day is taken from each event's timestamp.
type CSVSink struct {
	dir string
	mu  sync.Mutex
}

// NewCSVSink returns a sink writing under dir, creating it if needed.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	return &CSVSink{dir: dir}, nil
}

// LogPath returns the outcome file for the day of t.
func (s *CSVSink) LogPath(t time.Time) string {
	return filepath.Join(s.dir, logFilePrefix+t.Format("2006-01-02")+".csv")
}

// MatchReportPath returns the match file for the day of t.
func (s *CSVSink) MatchReportPath(t time.Time) string {
	return filepath.Join(s.dir, matchFilePrefix+t.Format("2006-01-02")+".csv")
}

// StartRun is a no-op; files are opened per event.
func (s *CSVSink) StartRun(context.Context, *models.RunSummary) error { return nil }

// FinishRun is a no-op.
func (s *CSVSink) FinishRun(context.Context, *models.RunSummary) error { return nil }

// Close is a no-op.
func (s *CSVSink) Close() error { return nil }

// FileOutcome appends a row to the daily log file for the outcome timestamp.
func (s *CSVSink) FileOutcome(_ context.Context, o models.FileOutcome) error {
	return s.appendRow(s.LogPath(o.Timestamp), logHeader,
		[]string{o.Timestamp.Format(TimestampLayout), o.Path, string(o.Status)})
}

// Match appends a row to the daily match report for the event timestamp.
func (s *CSVSink) Match(_ context.Context, e models.MatchEvent) error {
	return s.appendRow(s.MatchReportPath(e.Timestamp), matchHeader,
		[]string{e.Timestamp.Format(TimestampLayout), e.Path, e.MatchedText, e.FileExt, e.Source, e.OCRFlag})
}

// appendRow writes row to path, writing header first when the file is new.
func (s *CSVSink) appendRow(path string, header, row []string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", filepath.Base(path), cerr)
		}
	}()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
