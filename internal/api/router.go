// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/projectrank/internal/cache"
	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/scorestore"
)

// ScoreReader reads published sorted sets. scorestore.Store satisfies it.
type ScoreReader interface {
	Range(ctx context.Context, key string, limit int) ([]scorestore.Entry, error)
}

// Pinger checks a dependency. *database.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the read API settings.
type Config struct {
	// RequestsPerMinute is the per-IP limit under /api/v1; 0 disables it.
	RequestsPerMinute int

	// Timeout bounds each /api/v1 request.
	Timeout time.Duration

	// Location defines local midnight for trending windows.
	Location *time.Location

	// DefaultLimit applies when a request has no limit; 0 returns everything stored.
	DefaultLimit int

	// CacheTTL enables an in-process cache of served ranges when positive.
	CacheTTL  time.Duration
	CacheSize int
}

// ConfigFrom builds a Config from the process config.
func ConfigFrom(cfg *config.Config) (Config, error) {
	loc, err := cfg.Trending.Location()
	if err != nil {
		return Config{}, fmt.Errorf("trending timezone: %w", err)
	}
	return Config{
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		Timeout:           cfg.Server.Timeout,
		Location:          loc,
		CacheTTL:          cfg.Server.CacheTTL,
		CacheSize:         cfg.Server.CacheSize,
	}, nil
}

// Server holds the handler dependencies.
type Server struct {
	scores    ScoreReader
	store     ScoreReader
	db        Pinger
	config    Config
	logger    zerolog.Logger
	now       func() time.Time
	startTime time.Time
}

// NewServer creates the read API. db may be nil. Readiness probes always
// bypass the range cache.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewServer(scores ScoreReader, db Pinger, cfg Config, logger zerolog.Logger) *Server {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	reader := scores
	if cfg.CacheTTL > 0 {
		reader = newCachedReader(scores, cache.NewLRU[[]scorestore.Entry](cfg.CacheSize, cfg.CacheTTL))
	}
	return &Server{
		scores:    reader,
		store:     scores,
		db:        db,
		config:    cfg,
		logger:    logger.With().Str("component", "api").Logger(),
		now:       time.Now,
		startTime: time.Now(),
	}
}

// Routes builds the Chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging(s.logger))

	r.Get("/healthz", s.Healthz)
	r.Get("/readyz", s.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(s.config.RequestsPerMinute))
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics)
		r.Use(chimiddleware.Timeout(s.config.Timeout))

		r.Get("/recs/{userIdx}", s.Recommendations)
		r.Get("/trending/{window}", s.Trending)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("no such endpoint")
	})

	return r
}

// HTTPServer wraps Routes in an *http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.Timeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
