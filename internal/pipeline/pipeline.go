// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package pipeline wires the database, feature store, checkpoint store and
// score store into the three batch operations the scheduler and the CLI run:
// encoding features, personalized inference and trending aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/logging"
	"github.com/tomtom215/projectrank/internal/recommend"
	"github.com/tomtom215/projectrank/internal/recommend/storage"
	"github.com/tomtom215/projectrank/internal/scorestore"
	"github.com/tomtom215/projectrank/internal/trending"
)

// Source is the relational data the pipeline reads and the trending rows it
// writes. *database.DB implements it.
type Source interface {
	trending.EventSource
	trending.Recorder
	AllEvents(ctx context.Context) ([]features.Event, error)
	UserProfiles(ctx context.Context) ([]features.UserProfile, error)
	ProjectProfiles(ctx context.Context) ([]features.ProjectProfile, error)
	ProjectCreatedAt(ctx context.Context) (map[int64]time.Time, error)
}

// Pipeline runs the batch operations against one configuration.
type Pipeline struct {
	cfg         *config.Config
	source      Source
	scores      scorestore.Store
	features    *features.Store
	snapshots   *features.SnapshotHolder
	checkpoints *storage.Store
	engine      *recommend.Engine
	aggregator  *trending.Aggregator
	logger      zerolog.Logger
	now         func() time.Time
}

// New builds a pipeline. The checkpoint directory is created if missing.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg *config.Config, source Source, scores scorestore.Store, logger zerolog.Logger) (*Pipeline, error) {
	if cfg == nil || source == nil || scores == nil {
		return nil, errors.New("pipeline: config, source and score store are required")
	}

	checkpoints, err := storage.NewStore(cfg.Model.CheckpointDir)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	engine, err := recommend.NewEngine(recommend.FromConfig(&cfg.Inference), scores, logger.With().Str("component", "inference").Logger())
	if err != nil {
		return nil, fmt.Errorf("create inference engine: %w", err)
	}

	loc, err := cfg.Trending.Location()
	if err != nil {
		return nil, fmt.Errorf("trending timezone: %w", err)
	}
	aggregator, err := trending.NewAggregator(trending.FromConfig(&cfg.Trending), source, scores, source, loc,
		logger.With().Str("component", "trending").Logger())
	if err != nil {
		return nil, fmt.Errorf("create trending aggregator: %w", err)
	}

	return &Pipeline{
		cfg:         cfg,
		source:      source,
		scores:      scores,
		features:    features.NewStore(cfg.Features.Dir),
		snapshots:   &features.SnapshotHolder{},
		checkpoints: checkpoints,
		engine:      engine,
		aggregator:  aggregator,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Snapshot returns the current feature snapshot, loading it from the feature
// store on first use.
func (p *Pipeline) Snapshot() (*features.Snapshot, error) {
	if snap := p.snapshots.Load(); snap != nil {
		return snap, nil
	}
	snap, err := p.features.Load()
	if err != nil {
		return nil, fmt.Errorf("load feature store: %w", err)
	}
	p.snapshots.Publish(snap)
	return snap, nil
}

// Encode rebuilds the feature store from the source profiles and publishes
// the new snapshot.
func (p *Pipeline) Encode(ctx context.Context) (*features.Snapshot, *features.EncodeStats, error) {
	log := logging.Ctx(ctx, p.logger)

	users, err := p.source.UserProfiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load user profiles: %w", err)
	}
	projects, err := p.source.ProjectProfiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load project profiles: %w", err)
	}

	enc := features.NewEncoder(p.features, p.cfg.Features.Lock, log)
	snap, stats, err := enc.Encode(ctx, users, projects)
	if err != nil {
		return nil, nil, err
	}
	p.snapshots.Publish(snap)
	return snap, stats, nil
}

// Inputs assembles everything one inference run needs for snap.
func (p *Pipeline) Inputs(ctx context.Context, snap *features.Snapshot) (*recommend.Inputs, error) {
	log := logging.Ctx(ctx, p.logger)

	net, _, err := recommend.LoadModel(ctx, p.checkpoints, &p.cfg.Model, snap, log)
	if err != nil {
		return nil, err
	}

	events, err := p.source.AllEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	createdAt, err := p.source.ProjectCreatedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("load project creation times: %w", err)
	}

	weights := features.EventWeights{
		View:    p.cfg.Trending.ViewWeight,
		Like:    p.cfg.Trending.LikeWeight,
		Comment: p.cfg.Trending.CommentWeight,
	}
	return &recommend.Inputs{
		Features: snap,
		Model:    net,
		Behavior: features.BuildBehaviorIndex(events, snap.UserIDs, snap.ProjectIDs),
		Fallback: features.BuildFallbackSignals(events, snap.ProjectIDs, createdAt, weights, p.now(), p.cfg.Inference.RecencyHalfLife),
	}, nil
}

// Infer scores every user against the current snapshot and publishes the
// results.
func (p *Pipeline) Infer(ctx context.Context) (*recommend.RunStats, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	in, err := p.Inputs(ctx, snap)
	if err != nil {
		return nil, err
	}
	return p.engine.Run(ctx, in)
}

// Refresh re-encodes features and then runs inference, the hourly job.
func (p *Pipeline) Refresh(ctx context.Context) (*recommend.RunStats, error) {
	if _, _, err := p.Encode(ctx); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return p.Infer(ctx)
}

// Trending aggregates the window of kind containing at.
func (p *Pipeline) Trending(ctx context.Context, kind trending.WindowKind, at time.Time) (*trending.Result, error) {
	return p.aggregator.Run(ctx, kind, at)
}

// TrendingPrevious aggregates the last complete window of kind before at.
// Scheduled runs fire just after midnight, so they score the window that
// just closed.
func (p *Pipeline) TrendingPrevious(ctx context.Context, kind trending.WindowKind, at time.Time) (*trending.Result, error) {
	w, err := trending.WindowBounds(kind, at, p.aggregator.Location())
	if err != nil {
		return nil, err
	}
	return p.aggregator.Run(ctx, kind, w.Previous().Start)
}

// Recommendation is one scored project for a single user.
type Recommendation struct {
	ProjectID int64   `json:"project_id"`
	Score     float64 `json:"score"`
}

// ScoreUser computes the ranking of one user without publishing it. k <= 0
// uses the configured top K.
func (p *Pipeline) ScoreUser(ctx context.Context, userID int64, k int) ([]Recommendation, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	u, ok := snap.UserIDs.Index(userID)
	if !ok {
		return nil, fmt.Errorf("user %d is not in the feature store", userID)
	}
	in, err := p.Inputs(ctx, snap)
	if err != nil {
		return nil, err
	}

	userEmb, err := in.Model.EncodeUsers(snap.Users)
	if err != nil {
		return nil, fmt.Errorf("encode users: %w", err)
	}
	itemEmb, err := in.Model.EncodeItems(snap.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}

	entries, err := p.engine.Recommend(u, userEmb, itemEmb, in, k)
	if err != nil {
		return nil, err
	}

	out := make([]Recommendation, 0, len(entries))
	for _, en := range entries {
		id, err := strconv.ParseInt(en.Member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad project member %q: %w", en.Member, err)
		}
		out = append(out, Recommendation{ProjectID: id, Score: en.Score})
	}
	return out, nil
}

// Scores returns the score store both engines publish to.
func (p *Pipeline) Scores() scorestore.Store {
	return p.scores
}

// Close releases the score store.
func (p *Pipeline) Close() error {
	return p.scores.Close()
}
