// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package trending

import (
	"fmt"
	"time"

	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/features"
)

// Scoring modes.
const (
	ModeBlend      = "blend"
	ModeTrendRatio = "trend_ratio"
)

// trendEpsilon keeps the growth ratio finite when the baseline is 0.
const trendEpsilon = 1e-6

// Config holds the aggregation settings.
type Config struct {
	Mode    string
	TopK    int
	Weights features.EventWeights

	// blend
	BaseWeight      float64
	PeriodWeight    float64
	RecencyWeight   float64
	RecencyHalfLife time.Duration

	// trend_ratio
	HistoryWindows int
	EWMAAlpha      float64
	TrendMin       float64
	TrendMax       float64
	AlphaDaily     float64
	AlphaWeekly    float64

	TieBreakEpsilon float64
	TieBreakSalt    string
}

// DefaultConfig returns the aggregation defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:            ModeBlend,
		TopK:            50,
		Weights:         features.EventWeights{View: 1, Like: 3, Comment: 5},
		BaseWeight:      0.2,
		PeriodWeight:    0.6,
		RecencyWeight:   0.2,
		RecencyHalfLife: 24 * time.Hour,
		HistoryWindows:  8,
		EWMAAlpha:       0.3,
		TrendMin:        0.5,
		TrendMax:        3.0,
		AlphaDaily:      0.7,
		AlphaWeekly:     0.6,
		TieBreakEpsilon: 1e-6,
		TieBreakSalt:    "top",
	}
}

// FromConfig maps the loaded trending section.
func FromConfig(c *config.TrendingConfig) *Config {
	return &Config{
		Mode:    c.Mode,
		TopK:    c.TopK,
		Weights: features.EventWeights{View: c.ViewWeight, Like: c.LikeWeight, Comment: c.CommentWeight},

		BaseWeight:      c.BaseWeight,
		PeriodWeight:    c.PeriodWeight,
		RecencyWeight:   c.RecencyWeight,
		RecencyHalfLife: c.RecencyHalfLife,

		HistoryWindows: c.HistoryWindows,
		EWMAAlpha:      c.EWMAAlpha,
		TrendMin:       c.TrendMin,
		TrendMax:       c.TrendMax,
		AlphaDaily:     c.AlphaDaily,
		AlphaWeekly:    c.AlphaWeekly,

		TieBreakEpsilon: c.TieBreakEpsilon,
		TieBreakSalt:    c.TieBreakSalt,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeBlend:
		if c.RecencyHalfLife <= 0 {
			return fmt.Errorf("recency half-life must be positive, got %v", c.RecencyHalfLife)
		}
	case ModeTrendRatio:
		if c.HistoryWindows < 1 {
			return fmt.Errorf("history windows must be at least 1, got %d", c.HistoryWindows)
		}
		if c.EWMAAlpha <= 0 || c.EWMAAlpha > 1 {
			return fmt.Errorf("ewma alpha must be in (0,1], got %f", c.EWMAAlpha)
		}
		if c.TrendMax <= c.TrendMin {
			return fmt.Errorf("trend max must exceed trend min, got [%f, %f]", c.TrendMin, c.TrendMax)
		}
	default:
		return fmt.Errorf("unknown trending mode %q", c.Mode)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top k must be at least 1, got %d", c.TopK)
	}
	if c.TieBreakEpsilon < 0 {
		return fmt.Errorf("tie-break epsilon must be non-negative, got %f", c.TieBreakEpsilon)
	}
	return nil
}

// alpha returns the engagement share for kind.
func (c *Config) alpha(kind WindowKind) float64 {
	if kind == WindowWeek {
		return c.AlphaWeekly
	}
	return c.AlphaDaily
}
