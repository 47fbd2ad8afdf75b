// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package recommend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/metrics"
	"github.com/tomtom215/projectrank/internal/recommend/model"
	"github.com/tomtom215/projectrank/internal/recommend/storage"
)

// LoadModel builds a network sized for snap and fills it from the
// configured checkpoint. Dimensions recorded in the checkpoint take
// precedence over cfg so the architecture matches what was trained.
//
// A missing checkpoint is an error. Parameters that do not fit are skipped,
// logged and counted; the returned report lists them.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func LoadModel(ctx context.Context, store *storage.Store, cfg *config.ModelConfig, snap *features.Snapshot, logger zerolog.Logger) (*model.TwoTower, *model.LoadReport, error) {
	env, meta, err := store.Load(ctx, cfg.Name, cfg.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("load checkpoint %s: %w", cfg.Name, err)
	}
	ck, err := model.Resolve(env)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve checkpoint %s v%d: %w", meta.Name, meta.Version, err)
	}

	mc := model.Config{
		NumUsers:     snap.Users.Rows(),
		NumItems:     snap.Items.Rows(),
		UserFeatDim:  snap.Users.Cols(),
		ItemFeatDim:  snap.Items.Cols(),
		EmbeddingDim: cfg.EmbeddingDim,
		HiddenDims:   cfg.HiddenDims,
		Seed:         cfg.Seed,
	}
	if ck.Meta.EmbeddingDim > 0 {
		mc.EmbeddingDim = ck.Meta.EmbeddingDim
	}
	if len(ck.Meta.HiddenDims) > 0 {
		mc.HiddenDims = ck.Meta.HiddenDims
	}

	net, err := model.New(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("build model: %w", err)
	}

	report := net.LoadLenient(ck)
	logLoadReport(logger, meta, report)
	return net, report, nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func logLoadReport(logger zerolog.Logger, meta *storage.Metadata, r *model.LoadReport) {
	logger = logger.With().
		Str("checkpoint", meta.Name).
		Int("version", meta.Version).
		Str("kind", string(r.Kind)).
		Logger()

	for _, p := range r.Partial {
		metrics.RecordCheckpointSkip("partial_rows")
		logger.Warn().
			Str("param", p.Name).
			Int("rows_copied", p.Rows).
			Ints("checkpoint_shape", p.Checkpoint).
			Ints("model_shape", p.Model).
			Msg("Embedding table resized; new rows keep their initialization")
	}
	for _, s := range r.Skipped {
		metrics.RecordCheckpointSkip("shape_mismatch")
		logger.Warn().Str("param", s.Name).Str("reason", s.Reason).Msg("Checkpoint parameter skipped")
	}
	for _, name := range r.Missing {
		metrics.RecordCheckpointSkip("missing")
		logger.Warn().Str("param", name).Msg("Parameter absent from checkpoint")
	}
	for _, name := range r.Unexpected {
		metrics.RecordCheckpointSkip("unexpected")
		logger.Debug().Str("param", name).Msg("Checkpoint parameter not used by model")
	}

	logger.Info().
		Int("copied", len(r.Copied)).
		Int("partial", len(r.Partial)).
		Int("skipped", len(r.Skipped)).
		Bool("clean", r.Clean()).
		Msg("Checkpoint loaded")
}
