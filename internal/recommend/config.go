// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package recommend

import (
	"fmt"

	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/features"
)

// Config contains the scoring weights and shaping knobs of one engine.
type Config struct {
	// ContentWeight scales the base vector for both warm and cold users.
	ContentWeight float64

	// Behavior is the additive boost per interaction kind.
	Behavior features.EventWeights

	// PopularityWeight and RecencyWeight blend the cold-start fallback.
	PopularityWeight float64
	RecencyWeight    float64

	// ExcludeSeen replaces the behavior boost with exclusion.
	ExcludeSeen bool

	// ColdStartOnFullExclusion scores a user with features as cold start
	// when no non-excluded project has a positive content score.
	ColdStartOnFullExclusion bool

	// Temperature shapes scores as score^(1/T). 1 is a no-op.
	Temperature float64

	// TieBreakEpsilon scales the per-project jitter; 0 disables it.
	TieBreakEpsilon float64
	TieBreakSalt    string

	// MinScore drops projects whose final score is below it.
	MinScore float64

	// TopK keeps the best K projects per user; 0 keeps all.
	TopK int

	// ChunkSize is the number of items per similarity chunk.
	ChunkSize int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		ContentWeight:    1.0,
		Behavior:         features.EventWeights{View: 0.02, Like: 0.05, Comment: 0.05},
		PopularityWeight: 0.7,
		RecencyWeight:    0.3,
		Temperature:      1.0,
		TieBreakEpsilon:  1e-6,
		TieBreakSalt:     "recs",
		TopK:             100,
		ChunkSize:        4096,
	}
}

// FromConfig maps the loaded inference section onto an engine Config.
func FromConfig(c *config.InferenceConfig) *Config {
	return &Config{
		ContentWeight: c.ContentWeight,
		Behavior: features.EventWeights{
			View:    c.ViewWeight,
			Like:    c.LikeWeight,
			Comment: c.CommentWeight,
		},
		PopularityWeight:         c.PopularityWeight,
		RecencyWeight:            c.RecencyWeight,
		ExcludeSeen:              c.ExcludeSeen,
		ColdStartOnFullExclusion: c.ColdStartOnFullExclusion,
		Temperature:              c.Temperature,
		TieBreakEpsilon:          c.TieBreakEpsilon,
		TieBreakSalt:             c.TieBreakSalt,
		MinScore:                 c.MinScore,
		TopK:                     c.TopK,
		ChunkSize:                c.ChunkSize,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ContentWeight < 0 {
		return fmt.Errorf("content weight must be non-negative, got %f", c.ContentWeight)
	}
	if c.Behavior.View < 0 || c.Behavior.Like < 0 || c.Behavior.Comment < 0 {
		return fmt.Errorf("behavior weights must be non-negative, got %+v", c.Behavior)
	}
	if c.PopularityWeight < 0 || c.RecencyWeight < 0 {
		return fmt.Errorf("fallback weights must be non-negative, got popularity=%f recency=%f",
			c.PopularityWeight, c.RecencyWeight)
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %f", c.Temperature)
	}
	if c.TieBreakEpsilon < 0 {
		return fmt.Errorf("tie-break epsilon must be non-negative, got %f", c.TieBreakEpsilon)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min score must be in [0,1], got %f", c.MinScore)
	}
	if c.TopK < 0 {
		return fmt.Errorf("top k must be non-negative, got %d", c.TopK)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1, got %d", c.ChunkSize)
	}
	return nil
}
