package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/docscan/internal/models"
	"github.com/hyperjump/docscan/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// statusFilters maps the files endpoint's status query values to stored statuses.
var statusFilters = map[string]models.FileStatus{
	"":            "",
	"match_found": models.StatusMatchFound,
	"no_match":    models.StatusNoMatch,
	"error":       models.StatusError,
}

type page struct {
	offset, limit int
}

func parsePage(r *http.Request) (page, error) {
	p := page{limit: defaultPageSize}
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, errors.New("offset must be a non-negative integer")
		}
		p.offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, errors.New("limit must be a positive integer")
		}
		p.limit = min(n, maxPageSize)
	}
	return p, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runCount, err := s.storage.CountRuns(ctx)
	if err != nil {
		s.logger.Error("status: count runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	matchCount, err := s.storage.CountMatches(ctx)
	if err != nil {
		s.logger.Error("status: count matches failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"runs":    runCount,
		"matches": matchCount,
	}
	latest, err := s.storage.LatestRun(ctx)
	switch {
	case err == nil:
		resp["latest_run"] = latest
	case !errors.Is(err, storage.ErrNotFound):
		s.logger.Warn("status: latest run lookup failed", zap.Error(err))
	}

	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"directory":     s.config.Scan.Directory,
			"extensions":    s.config.Scan.Extensions,
			"mode":          s.config.Search.SearchMode(),
			"keywords":      len(s.config.Search.Keywords),
			"regex_rules":   len(s.config.Search.RegexPatterns),
			"upload":        s.config.Upload.Enabled,
			"database_path": s.config.Report.DatabasePath,
			"log_directory": s.config.Report.LogDirectory,
		}
		usage, err := storage.ResultUsage(s.config.Report.DatabasePath, s.config.Report.LogDirectory)
		if err == nil {
			resp["disk_usage"] = usage
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.storage.ListRuns(r.Context(), p.offset, p.limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*models.RunSummary{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "offset": p.offset, "limit": p.limit})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.LatestRun(r.Context())
	s.respondRun(w, run, err)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.GetRun(r.Context(), chi.URLParam(r, "id"))
	s.respondRun(w, run, err)
}

func (s *Server) respondRun(w http.ResponseWriter, run *models.RunSummary, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, ok := statusFilters[strings.ToLower(r.URL.Query().Get("status"))]
	if !ok {
		s.respondError(w, http.StatusBadRequest, "status must be one of match_found, no_match, error")
		return
	}
	p, err := parsePage(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.runExists(w, r, id) {
		return
	}
	s.logger.Debug("list outcomes", zap.String("run_id", id), zap.String("status", string(status)))
	outcomes, err := s.storage.ListOutcomes(r.Context(), id, status, p.offset, p.limit)
	if err != nil {
		s.logger.Error("list outcomes failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if outcomes == nil {
		outcomes = []models.FileOutcome{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"run_id": id, "files": outcomes, "offset": p.offset, "limit": p.limit})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := parsePage(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.runExists(w, r, id) {
		return
	}
	matches, err := s.storage.ListMatches(r.Context(), id, p.offset, p.limit)
	if err != nil {
		s.logger.Error("list matches failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []models.MatchEvent{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"run_id": id, "matches": matches, "offset": p.offset, "limit": p.limit})
}

// runExists writes a 404 or 500 response and reports false when the run cannot be served.
func (s *Server) runExists(w http.ResponseWriter, r *http.Request, id string) bool {
	_, err := s.storage.GetRun(r.Context(), id)
	if err == nil {
		return true
	}
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return false
	}
	s.logger.Error("get run failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
	return false
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
