// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import (
	"time"

	"github.com/tomtom215/projectrank/internal/scoring"
)

// FallbackSignals are the global per-project signals used to rank items for
// cold-start users. Both slices are indexed by project index and lie in [0,1].
type FallbackSignals struct {
	Popularity []float64
	Recency    []float64
}

// Blend returns popWeight*Popularity + recWeight*Recency.
func (f *FallbackSignals) Blend(popWeight, recWeight float64) []float64 {
	out := make([]float64, len(f.Popularity))
	for i := range out {
		out[i] = popWeight*f.Popularity[i] + recWeight*f.Recency[i]
	}
	return out
}

// BuildFallbackSignals derives popularity and recency for every project in
// projects.
//
// Popularity is the weighted sum of a project's events. Recency decays with
// halfLife from the project's most recent event, or from its creation time
// when it has no events. Both arrays are normalized by their maximum.
func BuildFallbackSignals(events []Event, projects *IDMap, createdAt map[int64]time.Time, weights EventWeights, now time.Time, halfLife time.Duration) *FallbackSignals {
	n := projects.Span()
	pop := make([]float64, n)
	last := make([]time.Time, n)

	for i := range events {
		ev := &events[i]
		p, ok := projects.Index(ev.ProjectID)
		if !ok {
			continue
		}
		pop[p] += weights.Weight(ev.Kind)
		if ev.At.After(last[p]) {
			last[p] = ev.At
		}
	}

	for id, ts := range createdAt {
		p, ok := projects.Index(id)
		if !ok || !last[p].IsZero() {
			continue
		}
		last[p] = ts
	}

	rec := make([]float64, n)
	hl := halfLife.Seconds()
	for p, ts := range last {
		if ts.IsZero() {
			continue
		}
		rec[p] = scoring.ExpDecay(now.Sub(ts).Seconds(), hl)
	}

	return &FallbackSignals{
		Popularity: scoring.NormalizeByMax(pop),
		Recency:    scoring.NormalizeByMax(rec),
	}
}
