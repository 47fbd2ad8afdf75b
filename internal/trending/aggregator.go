// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package trending

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/logging"
	"github.com/tomtom215/projectrank/internal/metrics"
	"github.com/tomtom215/projectrank/internal/scorestore"
)

// Aggregator recomputes one trending window per Run.
type Aggregator struct {
	config   *Config
	source   EventSource
	store    ScoreWriter
	recorder Recorder
	location *time.Location
	logger   zerolog.Logger
}

// NewAggregator creates an aggregator. recorder may be nil when the
// top_projects table is not kept.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAggregator(cfg *Config, source EventSource, store ScoreWriter, recorder Recorder, loc *time.Location, logger zerolog.Logger) (*Aggregator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if source == nil || store == nil {
		return nil, errors.New("event source and score store are required")
	}
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		config:   cfg,
		source:   source,
		store:    store,
		recorder: recorder,
		location: loc,
		logger:   logger.With().Str("component", "trending").Logger(),
	}, nil
}

// Location returns the time zone windows are computed in.
func (a *Aggregator) Location() *time.Location {
	return a.location
}

// Run recomputes the window of kind containing at and publishes it.
// An empty window publishes an empty set.
func (a *Aggregator) Run(ctx context.Context, kind WindowKind, at time.Time) (res *Result, err error) {
	start := time.Now()
	defer func() {
		published := 0
		if res != nil {
			published = len(res.Ranked)
			res.Duration = time.Since(start)
		}
		metrics.RecordTrendingRun(string(kind), time.Since(start), published, err)
	}()

	w, err := WindowBounds(kind, at, a.location)
	if err != nil {
		return nil, err
	}
	logger := logging.Ctx(ctx, a.logger).With().
		Str("window", w.Key()).
		Str("mode", a.config.Mode).
		Logger()

	events, err := a.load(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", w.Key(), err)
	}

	var scored []Scored
	switch a.config.Mode {
	case ModeTrendRatio:
		scored = ScoreTrend(events, w, a.config)
	default:
		scored = ScoreBlend(events, w, a.config)
	}

	res = &Result{
		Window:     w,
		Mode:       a.config.Mode,
		Events:     len(events),
		Candidates: len(scored),
		Ranked:     rank(scored, a.config.TopK),
	}

	if err := a.publish(ctx, w, res.Ranked); err != nil {
		return res, err
	}

	logger.Info().
		Int("events", res.Events).
		Int("candidates", res.Candidates).
		Int("published", len(res.Ranked)).
		Dur("duration", time.Since(start)).
		Msg("Trending window published")
	return res, nil
}

// load fetches exactly the events the active mode reads.
func (a *Aggregator) load(ctx context.Context, w Window) ([]features.Event, error) {
	if a.config.Mode == ModeTrendRatio {
		history := w.History(a.config.HistoryWindows)
		return a.source.Events(ctx, history[0].Start, w.End)
	}
	return a.source.Events(ctx, time.Time{}, w.End)
}

func (a *Aggregator) publish(ctx context.Context, w Window, ranked []Ranked) error {
	entries := make([]scorestore.Entry, len(ranked))
	for i, r := range ranked {
		entries[i] = scorestore.Entry{Member: strconv.FormatInt(r.ProjectID, 10), Score: r.Score}
	}
	if err := a.store.Replace(ctx, w.Key(), entries); err != nil {
		return fmt.Errorf("publish %s: %w", w.Key(), err)
	}

	if a.recorder != nil {
		if err := a.recorder.SaveTopProjects(ctx, w, ranked); err != nil {
			return fmt.Errorf("record top projects for %s: %w", w.Key(), err)
		}
	}
	return nil
}
