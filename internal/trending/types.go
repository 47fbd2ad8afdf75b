// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package trending

import (
	"context"
	"sort"
	"time"

	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/scorestore"
)

// EventSource loads the unified view/like/comment stream.
type EventSource interface {
	// Events returns events with from <= At < to. A zero from means no
	// lower bound.
	Events(ctx context.Context, from, to time.Time) ([]features.Event, error)
}

// ScoreWriter is the part of the score store the aggregator writes through.
type ScoreWriter interface {
	Replace(ctx context.Context, key string, entries []scorestore.Entry) error
}

// Recorder persists the ranked rows of one window.
type Recorder interface {
	SaveTopProjects(ctx context.Context, w Window, rows []Ranked) error
}

// Scored is one candidate project with its final score and the components
// that produced it.
type Scored struct {
	ProjectID int64
	Score     float64
	Meta      map[string]float64
}

// Ranked is a published row.
type Ranked struct {
	Rank      int
	ProjectID int64
	Score     float64
	Meta      map[string]float64
}

// Result describes one aggregation run.
type Result struct {
	Window     Window
	Mode       string
	Events     int
	Candidates int
	Ranked     []Ranked
	Duration   time.Duration
}

// rank sorts by descending score, ties by ascending project id, and keeps
// the best k.
func rank(scored []Scored, k int) []Ranked {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ProjectID < scored[j].ProjectID
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	out := make([]Ranked, len(scored))
	for i, s := range scored {
		out[i] = Ranked{Rank: i + 1, ProjectID: s.ProjectID, Score: s.Score, Meta: s.Meta}
	}
	return out
}
