package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/docscan/internal/config"
	"github.com/hyperjump/docscan/internal/models"
	"github.com/hyperjump/docscan/internal/storage"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	cfg := &config.Config{
		Scan:   config.ScanConfig{Directory: dir, Extensions: []string{".txt"}},
		Report: config.ReportConfig{DatabasePath: filepath.Join(dir, "results.db"), LogDirectory: filepath.Join(dir, "logs")},
	}
	config.ApplyDefaults(cfg)
	return NewServer(store, cfg, zap.NewNop()), store
}

func seedRun(t *testing.T, store storage.Storage) *models.RunSummary {
	t.Helper()
	ctx := context.Background()
	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	run := &models.RunSummary{RunID: "run-1", Root: "/srv/share", StartedAt: ts}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	outcomes := []models.FileOutcome{
		{Timestamp: ts, Path: "/srv/share/a.txt", Status: models.StatusMatchFound},
		{Timestamp: ts, Path: "/srv/share/b.txt", Status: models.StatusNoMatch},
		{Timestamp: ts, Path: "/srv/share/c.docx", Status: models.StatusError, Reason: "not a zip"},
	}
	for _, o := range outcomes {
		run.Record(o.Status, 0)
		if err := store.RecordOutcome(ctx, run.RunID, o); err != nil {
			t.Fatal(err)
		}
	}
	m := models.MatchEvent{Timestamp: ts, Path: "/srv/share/a.txt", MatchedText: "secret", FileExt: ".txt",
		Source: models.SourceKeyword, OCRFlag: models.OCRPlaceholder}
	if err := store.RecordMatch(ctx, run.RunID, m); err != nil {
		t.Fatal(err)
	}
	run.Matches = 1
	run.FinishedAt = ts.Add(time.Minute)
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	return run
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]string
	decode(t, w, &out)
	if out["status"] != "ok" {
		t.Errorf("body: got %v", out)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store)
	w := get(t, srv, "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Runs      int64              `json:"runs"`
		Matches   int64              `json:"matches"`
		LatestRun *models.RunSummary `json:"latest_run"`
		Config    map[string]any     `json:"config"`
		DiskUsage *storage.Usage     `json:"disk_usage"`
	}
	decode(t, w, &out)
	if out.Runs != 1 || out.Matches != 1 {
		t.Errorf("counts: got runs=%d matches=%d", out.Runs, out.Matches)
	}
	if out.LatestRun == nil || out.LatestRun.RunID != "run-1" {
		t.Errorf("latest run: got %+v", out.LatestRun)
	}
	if out.Config["mode"] != "both" {
		t.Errorf("config mode: got %v", out.Config["mode"])
	}
	if out.DiskUsage == nil || out.DiskUsage.DatabaseBytes == 0 {
		t.Errorf("disk usage: got %+v", out.DiskUsage)
	}
}

func TestHandleStatus_emptyStore(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]any
	decode(t, w, &out)
	if _, ok := out["latest_run"]; ok {
		t.Error("latest_run should be absent when no run exists")
	}
}

func TestHandleListRuns(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store)
	w := get(t, srv, "/api/v1/runs?limit=10")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Runs  []models.RunSummary `json:"runs"`
		Limit int                 `json:"limit"`
	}
	decode(t, w, &out)
	if len(out.Runs) != 1 || out.Runs[0].Files != 3 || out.Runs[0].Errors != 1 {
		t.Errorf("runs: got %+v", out.Runs)
	}
	if out.Limit != 10 {
		t.Errorf("limit: got %d", out.Limit)
	}
}

func TestHandleListRuns_badPage(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, q := range []string{"?limit=0", "?limit=x", "?offset=-1"} {
		if w := get(t, srv, "/api/v1/runs"+q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, w.Code)
		}
	}
}

func TestHandleGetRun(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store)

	w := get(t, srv, "/api/v1/runs/run-1")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var run models.RunSummary
	decode(t, w, &run)
	if run.Root != "/srv/share" || run.Matched != 1 {
		t.Errorf("run: got %+v", run)
	}

	if w := get(t, srv, "/api/v1/runs/missing"); w.Code != http.StatusNotFound {
		t.Errorf("missing run: got %d, want 404", w.Code)
	}
	if w := get(t, srv, "/api/v1/runs/latest"); w.Code != http.StatusOK {
		t.Errorf("latest run: got %d", w.Code)
	}
}

func TestHandleListOutcomes(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?status=error", 1},
		{"?status=MATCH_FOUND", 1},
		{"?status=no_match", 1},
		{"?limit=2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, srv, "/api/v1/runs/run-1/files"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("status: got %d", w.Code)
			}
			var out struct {
				Files []models.FileOutcome `json:"files"`
			}
			decode(t, w, &out)
			if len(out.Files) != tt.want {
				t.Errorf("files: got %d, want %d", len(out.Files), tt.want)
			}
		})
	}

	w := get(t, srv, "/api/v1/runs/run-1/files?status=error")
	var out struct {
		Files []models.FileOutcome `json:"files"`
	}
	decode(t, w, &out)
	if len(out.Files) == 1 && out.Files[0].Reason != "not a zip" {
		t.Errorf("reason: got %q", out.Files[0].Reason)
	}
}

func TestHandleListOutcomes_errors(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store)
	if w := get(t, srv, "/api/v1/runs/run-1/files?status=bogus"); w.Code != http.StatusBadRequest {
		t.Errorf("bad status: got %d, want 400", w.Code)
	}
	if w := get(t, srv, "/api/v1/runs/missing/files"); w.Code != http.StatusNotFound {
		t.Errorf("missing run: got %d, want 404", w.Code)
	}
}

func TestHandleListMatches(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store)
	w := get(t, srv, "/api/v1/runs/run-1/matches")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Matches []models.MatchEvent `json:"matches"`
	}
	decode(t, w, &out)
	if len(out.Matches) != 1 || out.Matches[0].MatchedText != "secret" || out.Matches[0].OCRFlag != "N/A" {
		t.Errorf("matches: got %+v", out.Matches)
	}
	if w := get(t, srv, "/api/v1/runs/missing/matches"); w.Code != http.StatusNotFound {
		t.Errorf("missing run: got %d, want 404", w.Code)
	}
}
