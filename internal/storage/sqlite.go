package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docscan/internal/fileid"
	"github.com/hyperjump/docscan/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		files INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		no_match INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		matches INTEGER NOT NULL DEFAULT 0,
		uploads INTEGER NOT NULL DEFAULT 0,
		upload_failures INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS file_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		file_id TEXT NOT NULL,
		path TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_run_status ON file_outcomes(run_id, status);
	CREATE INDEX IF NOT EXISTS idx_outcomes_file_id ON file_outcomes(file_id);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		file_id TEXT NOT NULL,
		path TEXT NOT NULL,
		matched_text TEXT NOT NULL,
		file_ext TEXT,
		source TEXT NOT NULL,
		ocr_flag TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_matches_run_id ON matches(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

const runColumns = `id, root, started_at, finished_at, files, matched, no_match, errors, matches, uploads, upload_failures`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.RunSummary, error) {
	var run models.RunSummary
	var finished sql.NullTime
	err := row.Scan(&run.RunID, &run.Root, &run.StartedAt, &finished,
		&run.Files, &run.Matched, &run.NoMatch, &run.Errors, &run.Matches, &run.Uploads, &run.UploadFailures)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// CreateRun inserts a run. StartedAt is set to now when zero.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *models.RunSummary) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Root, run.StartedAt, nullTime(run.FinishedAt),
		run.Files, run.Matched, run.NoMatch, run.Errors, run.Matches, run.Uploads, run.UploadFailures,
	)
	return err
}

// UpdateRun stores the counters and finish time of an existing run.
func (s *SQLiteStorage) UpdateRun(ctx context.Context, run *models.RunSummary) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, files = ?, matched = ?, no_match = ?, errors = ?,
		 matches = ?, uploads = ?, upload_failures = ? WHERE id = ?`,
		nullTime(run.FinishedAt), run.Files, run.Matched, run.NoMatch, run.Errors,
		run.Matches, run.Uploads, run.UploadFailures, run.RunID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.RunID, ErrNotFound)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.RunSummary, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (s *SQLiteStorage) LatestRun(ctx context.Context) (*models.RunSummary, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	return run, err
}

// ListRuns returns runs newest first with offset and limit.
func (s *SQLiteStorage) ListRuns(ctx context.Context, offset, limit int) ([]*models.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordOutcome inserts one per-file outcome for runID.
func (s *SQLiteStorage) RecordOutcome(ctx context.Context, runID string, o models.FileOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_outcomes (run_id, file_id, path, status, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, fileid.ForPath(o.Path), o.Path, string(o.Status), o.Reason, o.Timestamp,
	)
	return err
}

// RecordMatch inserts one match event for runID.
func (s *SQLiteStorage) RecordMatch(ctx context.Context, runID string, m models.MatchEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (run_id, file_id, path, matched_text, file_ext, source, ocr_flag, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, fileid.ForPath(m.Path), m.Path, m.MatchedText, m.FileExt, m.Source, m.OCRFlag, m.Timestamp,
	)
	return err
}

// ListOutcomes returns outcomes of a run in insertion order. An empty status returns all.
func (s *SQLiteStorage) ListOutcomes(ctx context.Context, runID string, status models.FileStatus, offset, limit int) ([]models.FileOutcome, error) {
	query := `SELECT path, status, reason, created_at FROM file_outcomes WHERE run_id = ?`
	args := []any{runID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FileOutcome
	for rows.Next() {
		var o models.FileOutcome
		var st string
		var reason sql.NullString
		if err := rows.Scan(&o.Path, &st, &reason, &o.Timestamp); err != nil {
			return nil, err
		}
		o.Status = models.FileStatus(st)
		o.Reason = reason.String
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListMatches returns match events of a run in insertion order.
func (s *SQLiteStorage) ListMatches(ctx context.Context, runID string, offset, limit int) ([]models.MatchEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, matched_text, file_ext, source, ocr_flag, created_at
		 FROM matches WHERE run_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		runID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MatchEvent
	for rows.Next() {
		var m models.MatchEvent
		var ext, ocrFlag sql.NullString
		if err := rows.Scan(&m.Path, &m.MatchedText, &ext, &m.Source, &ocrFlag, &m.Timestamp); err != nil {
			return nil, err
		}
		m.FileExt = ext.String
		m.OCRFlag = ocrFlag.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountRuns returns the total number of runs.
func (s *SQLiteStorage) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

// CountMatches returns the total number of stored match events.
func (s *SQLiteStorage) CountMatches(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
