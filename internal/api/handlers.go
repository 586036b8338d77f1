package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pitch-ingest/internal/ingest"
)

const (
	defaultURLLimit = 100
	maxURLLimit     = 1000
	storeTimeout    = 3 * time.Second
)

// listRuns handles GET /v1/runs, newest first.
func (s *Server) listRuns(w http.ResponseWriter, _ *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history unavailable")
		return
	}
	runs := s.runs.Runs()
	out := make([]ingest.Summary, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// listURLs handles GET /v1/urls?year=&month=&limit=&offset=. year and month
// are required.
func (s *Server) listURLs(w http.ResponseWriter, r *http.Request) {
	if s.urls == nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	q := r.URL.Query()
	year := strings.TrimSpace(q.Get("year"))
	month := strings.TrimSpace(q.Get("month"))
	if year == "" || month == "" {
		writeError(w, http.StatusBadRequest, "year and month are required")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultURLLimit, maxURLLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	records, err := s.urls.SelectURLs(ctx, year, month)
	if err != nil {
		s.logger.Error("select urls failed", zap.String("year", year), zap.String("month", month), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list urls")
		return
	}

	total := len(records)
	start := min(offset, total)
	page := records[start:min(start+limit, total)]
	writeJSON(w, http.StatusOK, map[string]any{
		"total": total,
		"urls":  page,
	})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
