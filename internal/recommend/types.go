// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/scorestore"
)

// Sentinel errors returned by Run.
var (
	// ErrNoUsers means the snapshot has no user rows.
	ErrNoUsers = errors.New("no users to score")

	// ErrNoItems means the snapshot has no item rows.
	ErrNoItems = errors.New("no items to score")

	// ErrNoSnapshot means Inputs carried no feature snapshot or model.
	ErrNoSnapshot = errors.New("feature snapshot or model missing")

	// ErrResourceExhausted is returned by a SimilarityFunc that ran out of
	// memory for one chunk. The engine skips that chunk.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// excludedScore ranks a seen project last; clamping maps it to 0.
const excludedScore = -1e9

// Score outcomes, also used as metric labels.
const (
	OutcomeModel     = "model"
	OutcomeColdStart = "cold_start"
	OutcomeFailed    = "failed"
)

// Encoder produces L2-normalized embeddings from feature matrices.
// *model.TwoTower implements it.
type Encoder interface {
	EncodeUsers(feats *features.Matrix) (*features.Matrix, error)
	EncodeItems(feats *features.Matrix) (*features.Matrix, error)
}

// ScoreWriter is the part of the score store the engine writes through.
type ScoreWriter interface {
	Replace(ctx context.Context, key string, entries []scorestore.Entry) error
}

// SimilarityFunc writes the similarity of user against items[lo:hi] into
// out, which has length hi-lo.
type SimilarityFunc func(user []float32, items *features.Matrix, lo, hi int, out []float64) error

// Inputs is everything one run reads. None of it is mutated.
type Inputs struct {
	Features *features.Snapshot
	Model    Encoder

	// Behavior may be nil: no user has interactions.
	Behavior *features.BehaviorIndex

	// Fallback may be nil: cold-start users score 0 before behavior.
	Fallback *features.FallbackSignals
}

// RunStats summarizes one run.
type RunStats struct {
	RunID         string
	StartedAt     time.Time
	Duration      time.Duration
	Users         int
	Items         int
	ModelScored   int
	ColdStart     int
	Failed        int
	Published     int
	EmptyResults  int
	ChunksSkipped int
}

// UserScores is the result for one user before top-K selection.
type UserScores struct {
	User          int
	Outcome       string
	Scores        []float64
	Excluded      []bool
	ChunksSkipped int
}
