// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/projectrank/internal/scorestore"
	"github.com/tomtom215/projectrank/internal/trending"
)

// ScoredProject is one ranked project in a response.
type ScoredProject struct {
	ProjectID int64   `json:"project_id"`
	Score     float64 `json:"score"`
}

// RecsResponse is the payload of GET /api/v1/recs/{userIdx}.
type RecsResponse struct {
	UserIdx int             `json:"user_idx"`
	Items   []ScoredProject `json:"items"`
}

// TrendingResponse is the payload of GET /api/v1/trending/{window}.
type TrendingResponse struct {
	Window string          `json:"window"`
	Key    string          `json:"key"`
	Start  time.Time       `json:"start"`
	End    time.Time       `json:"end"`
	Items  []ScoredProject `json:"items"`
}

// Recommendations handles GET /api/v1/recs/{userIdx}.
// A user with nothing published gets an empty list.
func (s *Server) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userIdx, err := strconv.Atoi(chi.URLParam(r, "userIdx"))
	if err != nil {
		rw.BadRequest("userIdx must be an integer")
		return
	}
	req := RecsRequest{
		UserIdx: userIdx,
		Limit:   getIntParam(r, "limit", s.config.DefaultLimit),
	}
	if verr := validateRequest(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	items, ok := s.readRanked(r.Context(), rw, scorestore.RecsKey(req.UserIdx), req.Limit)
	if !ok {
		return
	}
	rw.Success(RecsResponse{UserIdx: req.UserIdx, Items: items})
}

// Trending handles GET /api/v1/trending/{window}.
// Without a date the last complete window is returned.
func (s *Server) Trending(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := TrendingRequest{
		Window: chi.URLParam(r, "window"),
		Date:   r.URL.Query().Get("date"),
		Limit:  getIntParam(r, "limit", s.config.DefaultLimit),
	}
	if verr := validateRequest(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	win, err := s.resolveWindow(trending.WindowKind(req.Window), req.Date)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	items, ok := s.readRanked(r.Context(), rw, win.Key(), req.Limit)
	if !ok {
		return
	}
	rw.Success(TrendingResponse{
		Window: string(win.Kind),
		Key:    win.Key(),
		Start:  win.Start,
		End:    win.End,
		Items:  items,
	})
}

func (s *Server) resolveWindow(kind trending.WindowKind, date string) (trending.Window, error) {
	loc := s.config.Location
	if date == "" {
		cur, err := trending.WindowBounds(kind, s.now(), loc)
		if err != nil {
			return trending.Window{}, err
		}
		return cur.Previous(), nil
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return trending.Window{}, err
	}
	return trending.WindowBounds(kind, day, loc)
}

// readRanked reads key and converts members to project ids. It writes the
// error response itself and reports whether the caller should continue.
func (s *Server) readRanked(ctx context.Context, rw *ResponseWriter, key string, limit int) ([]ScoredProject, bool) {
	entries, err := s.scores.Range(ctx, key, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Score store read failed")
		rw.ServiceUnavailable("score store unavailable", nil)
		return nil, false
	}

	items := make([]ScoredProject, 0, len(entries))
	for _, e := range entries {
		id, err := strconv.ParseInt(e.Member, 10, 64)
		if err != nil {
			s.logger.Warn().Str("key", key).Str("member", e.Member).Msg("Skipping non-numeric member")
			continue
		}
		items = append(items, ScoredProject{ProjectID: id, Score: e.Score})
	}
	return items, true
}

// Healthz handles GET /healthz. It only reports that the process is alive.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// readinessProbeKey is read to check that the score store answers.
const readinessProbeKey = "health:probe"

// Readyz handles GET /readyz: 200 when every dependency answers, 503 otherwise.
func (s *Server) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"score_store": "ok"}
	ready := true

	if _, err := s.store.Range(ctx, readinessProbeKey, 1); err != nil {
		checks["score_store"] = err.Error()
		ready = false
	}
	if s.db != nil {
		checks["database"] = "ok"
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			ready = false
		}
	}

	rw := NewResponseWriter(w, r)
	if !ready {
		rw.ServiceUnavailable("not ready", checks)
		return
	}
	rw.Success(map[string]interface{}{"status": "ready", "checks": checks})
}
