// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/logging"
	"github.com/tomtom215/projectrank/internal/metrics"
	"github.com/tomtom215/projectrank/internal/recommend/model"
	"github.com/tomtom215/projectrank/internal/scorestore"
	"github.com/tomtom215/projectrank/internal/scoring"
)

// Engine scores every user of a feature snapshot and publishes the results.
// A single Engine runs one batch at a time.
type Engine struct {
	config     *Config
	store      ScoreWriter
	logger     zerolog.Logger
	similarity SimilarityFunc

	// Catalog-wide vectors reused across runs and single-user calls.
	// Fallback signals are immutable once built, so the pointer is the key.
	mu       sync.Mutex
	jitter   []float64
	coldSrc  *features.FallbackSignals
	coldBase []float64
}

// NewEngine creates an inference engine writing to store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, store ScoreWriter, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, errors.New("score store is required")
	}

	return &Engine{
		config:     cfg,
		store:      store,
		logger:     logger.With().Str("component", "recommend").Logger(),
		similarity: DotSimilarity,
	}, nil
}

// SetSimilarity replaces the chunk similarity function.
func (e *Engine) SetSimilarity(fn SimilarityFunc) {
	if fn == nil {
		fn = DotSimilarity
	}
	e.similarity = fn
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// DotSimilarity is the dot product of user with each item row. With
// normalized embeddings it is the cosine similarity.
func DotSimilarity(user []float32, items *features.Matrix, lo, hi int, out []float64) error {
	for i := lo; i < hi; i++ {
		out[i-lo] = model.Dot(user, items.Row(i))
	}
	return nil
}

// shared holds the per-run values every user reuses.
type shared struct {
	userEmb  *features.Matrix
	itemEmb  *features.Matrix
	jitter   []float64
	coldBase []float64
}

// Run scores every user index in the snapshot and replaces recs:<user_idx>.
//
// Per-user failures are logged and counted. Run returns an error only when
// the inputs are unusable or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, in *Inputs) (stats *RunStats, err error) {
	start := time.Now()
	stats = &RunStats{RunID: logging.RunIDFromContext(ctx), StartedAt: start}
	logger := logging.Ctx(ctx, e.logger)

	defer func() {
		stats.Duration = time.Since(start)
		metrics.RecordInferenceRun(stats.Duration, err)
	}()

	sh, err := e.prepare(in)
	if err != nil {
		return stats, err
	}
	stats.Users = in.Features.Users.Rows()
	stats.Items = in.Features.Items.Rows()

	logger.Info().
		Int("users", stats.Users).
		Int("items", stats.Items).
		Bool("exclude_seen", e.config.ExcludeSeen).
		Msg("Inference run started")

	for u := 0; u < stats.Users; u++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("inference cancelled after %d users: %w", u, err)
		}

		res, err := e.scoreUserSafe(u, sh, in)
		if err != nil {
			stats.Failed++
			metrics.RecordInferenceUser(OutcomeFailed)
			logger.Error().Err(err).Int("user_idx", u).Msg("Scoring user failed")
			continue
		}
		stats.ChunksSkipped += res.ChunksSkipped

		n, err := e.publish(ctx, in.Features.ProjectIDs, res)
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("inference cancelled: %w", ctx.Err())
			}
			stats.Failed++
			metrics.RecordInferenceUser(OutcomeFailed)
			logger.Error().Err(err).Int("user_idx", u).Msg("Publishing user scores failed")
			continue
		}

		metrics.RecordInferenceUser(res.Outcome)
		if res.Outcome == OutcomeColdStart {
			stats.ColdStart++
		} else {
			stats.ModelScored++
		}
		stats.Published++
		if n == 0 {
			stats.EmptyResults++
		}
	}

	logger.Info().
		Int("model", stats.ModelScored).
		Int("cold_start", stats.ColdStart).
		Int("failed", stats.Failed).
		Int("empty", stats.EmptyResults).
		Int("chunks_skipped", stats.ChunksSkipped).
		Dur("duration", time.Since(start)).
		Msg("Inference run complete")

	return stats, nil
}

// prepare validates inputs and computes embeddings, jitter and the
// cold-start base once per run.
func (e *Engine) prepare(in *Inputs) (*shared, error) {
	if in == nil || in.Features == nil || in.Model == nil {
		return nil, ErrNoSnapshot
	}
	snap := in.Features
	if snap.Users == nil || snap.Users.Rows() == 0 {
		return nil, ErrNoUsers
	}
	if snap.Items == nil || snap.Items.Rows() == 0 {
		return nil, ErrNoItems
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("feature snapshot: %w", err)
	}

	numItems := snap.Items.Rows()
	if in.Fallback != nil && (len(in.Fallback.Popularity) != numItems || len(in.Fallback.Recency) != numItems) {
		return nil, fmt.Errorf("fallback signals cover %d/%d items, catalog has %d",
			len(in.Fallback.Popularity), len(in.Fallback.Recency), numItems)
	}

	userEmb, err := in.Model.EncodeUsers(snap.Users)
	if err != nil {
		return nil, fmt.Errorf("encode users: %w", err)
	}
	itemEmb, err := in.Model.EncodeItems(snap.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	if userEmb.Rows() != snap.Users.Rows() || itemEmb.Rows() != numItems || userEmb.Cols() != itemEmb.Cols() {
		return nil, fmt.Errorf("embedding shapes disagree: users %dx%d, items %dx%d",
			userEmb.Rows(), userEmb.Cols(), itemEmb.Rows(), itemEmb.Cols())
	}

	jitter, coldBase := e.catalogVectors(numItems, in.Fallback)
	return &shared{
		userEmb:  userEmb,
		itemEmb:  itemEmb,
		jitter:   jitter,
		coldBase: coldBase,
	}, nil
}

// catalogVectors returns the jitter offsets and cold-start base for an
// n-item catalog, rebuilding them only when n or the fallback changes.
// Callers must not modify the returned slices.
func (e *Engine) catalogVectors(n int, fb *features.FallbackSignals) (jitter, coldBase []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.jitter) != n {
		e.jitter = scoring.JitterVector(n, e.config.TieBreakSalt, e.config.TieBreakEpsilon)
	}
	if e.coldBase == nil || len(e.coldBase) != n || e.coldSrc != fb {
		if fb != nil {
			e.coldBase = fb.Blend(e.config.PopularityWeight, e.config.RecencyWeight)
		} else {
			e.coldBase = make([]float64, n)
		}
		e.coldSrc = fb
	}
	return e.jitter, e.coldBase
}

// ScoreUser returns the shaped score vector of user u before top-K
// selection. userEmb and itemEmb are the encoded snapshot matrices.
func (e *Engine) ScoreUser(u int, userEmb, itemEmb *features.Matrix, in *Inputs) ([]float64, error) {
	res, err := e.scoreOne(u, userEmb, itemEmb, in)
	if err != nil {
		return nil, err
	}
	return res.Scores, nil
}

// Recommend returns the entries that a run would publish for user u, without
// writing them. k <= 0 uses the configured top K.
func (e *Engine) Recommend(u int, userEmb, itemEmb *features.Matrix, in *Inputs, k int) ([]scorestore.Entry, error) {
	res, err := e.scoreOne(u, userEmb, itemEmb, in)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = e.config.TopK
	}
	return e.selectEntries(in.Features.ProjectIDs, res, k), nil
}

func (e *Engine) scoreOne(u int, userEmb, itemEmb *features.Matrix, in *Inputs) (*UserScores, error) {
	if in == nil || in.Features == nil {
		return nil, ErrNoSnapshot
	}
	if itemEmb.Rows() == 0 {
		return nil, ErrNoItems
	}
	if u < 0 || u >= userEmb.Rows() {
		return nil, fmt.Errorf("user index %d out of range [0,%d)", u, userEmb.Rows())
	}
	jitter, coldBase := e.catalogVectors(itemEmb.Rows(), in.Fallback)
	sh := &shared{
		userEmb:  userEmb,
		itemEmb:  itemEmb,
		jitter:   jitter,
		coldBase: coldBase,
	}
	return e.scoreUserSafe(u, sh, in)
}

// scoreUserSafe converts a panic while scoring one user into an error.
func (e *Engine) scoreUserSafe(u int, sh *shared, in *Inputs) (res *UserScores, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic scoring user %d: %v", u, r)
		}
	}()
	return e.scoreUser(u, sh, in)
}

func (e *Engine) scoreUser(u int, sh *shared, in *Inputs) (*UserScores, error) {
	cfg := e.config
	n := sh.itemEmb.Rows()
	if u < 0 || u >= sh.userEmb.Rows() {
		return nil, fmt.Errorf("user index %d out of range [0,%d)", u, sh.userEmb.Rows())
	}

	res := &UserScores{User: u, Outcome: OutcomeModel, Scores: make([]float64, n)}
	scores := res.Scores

	if cfg.ExcludeSeen && in.Behavior != nil {
		res.Excluded = make([]bool, n)
		for _, p := range in.Behavior.Seen(u) {
			if p >= 0 && p < n {
				res.Excluded[p] = true
			}
		}
	}

	hasSkill := !in.Features.Users.IsZeroRow(u)
	if hasSkill {
		skipped, err := e.contentScores(sh.userEmb.Row(u), sh.itemEmb, scores)
		if err != nil {
			return nil, err
		}
		res.ChunksSkipped = skipped
		if cfg.ColdStartOnFullExclusion && res.Excluded != nil && !anyPositiveRemaining(scores, res.Excluded) {
			hasSkill = false
		}
	}

	if hasSkill {
		for i := range scores {
			scores[i] *= cfg.ContentWeight
		}
	} else {
		res.Outcome = OutcomeColdStart
		for i := range scores {
			scores[i] = cfg.ContentWeight * sh.coldBase[i]
		}
	}

	e.applyBehavior(u, in.Behavior, res)

	scoring.Clamp01(scores)
	scoring.ApplyTemperature(scores, cfg.Temperature)
	for i := range scores {
		if res.Excluded != nil && res.Excluded[i] {
			continue
		}
		scores[i] += sh.jitter[i]
	}
	scoring.Clamp01(scores)

	return res, nil
}

// contentScores fills out with chunked similarity and returns how many
// chunks were skipped.
func (e *Engine) contentScores(user []float32, items *features.Matrix, out []float64) (int, error) {
	chunk := e.config.ChunkSize
	skipped := 0
	for lo := 0; lo < items.Rows(); lo += chunk {
		hi := min(lo+chunk, items.Rows())
		err := e.similarity(user, items, lo, hi, out[lo:hi])
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrResourceExhausted) {
			return skipped, fmt.Errorf("similarity chunk [%d,%d): %w", lo, hi, err)
		}
		for i := lo; i < hi; i++ {
			out[i] = 0
		}
		skipped++
		metrics.RecordChunkSkipped()
		e.logger.Warn().Err(err).Int("chunk_start", lo).Int("chunk_end", hi).Msg("Similarity chunk skipped")
	}
	return skipped, nil
}

// anyPositiveRemaining reports whether a non-excluded project has a
// positive score.
func anyPositiveRemaining(scores []float64, excluded []bool) bool {
	for i, s := range scores {
		if !excluded[i] && s > 0 && !math.IsNaN(s) {
			return true
		}
	}
	return false
}

// applyBehavior adds per-kind boosts or forces seen projects to the
// exclusion sentinel.
func (e *Engine) applyBehavior(u int, behavior *features.BehaviorIndex, res *UserScores) {
	scores := res.Scores
	if res.Excluded != nil {
		for i, ex := range res.Excluded {
			if ex {
				scores[i] = excludedScore
			}
		}
		return
	}
	if behavior == nil {
		return
	}
	for _, k := range behavior.Kinds(u) {
		w := e.config.Behavior.Weight(k)
		for _, p := range behavior.Items(u, k) {
			if p >= 0 && p < len(scores) {
				scores[p] += w
			}
		}
	}
}

// publish selects the top-K publishable projects and replaces the user's
// key. It returns the number of entries written.
func (e *Engine) publish(ctx context.Context, projects *features.IDMap, res *UserScores) (int, error) {
	entries := e.selectEntries(projects, res, e.config.TopK)
	if err := e.store.Replace(ctx, scorestore.RecsKey(res.User), entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// selectEntries picks the best k projects of res. Excluded projects and
// indices without a project id are never selected.
func (e *Engine) selectEntries(projects *features.IDMap, res *UserScores, k int) []scorestore.Entry {
	scores := make([]float64, len(res.Scores))
	copy(scores, res.Scores)
	for i := range scores {
		if res.Excluded != nil && res.Excluded[i] {
			scores[i] = math.NaN()
			continue
		}
		if _, ok := projects.ID(i); !ok {
			scores[i] = math.NaN()
		}
	}

	ranked := scoring.TopK(scores, k, e.config.MinScore)
	entries := make([]scorestore.Entry, 0, len(ranked))
	for _, r := range ranked {
		id, _ := projects.ID(r.Index)
		entries = append(entries, scorestore.Entry{
			Member: strconv.FormatInt(id, 10),
			Score:  r.Score,
		})
	}
	return entries
}
