// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package trending

import (
	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/scoring"
)

// ScoreBlend scores every project with at least one event before w.End.
//
//	final = base_w*base + period_w*period + recency_w*recency + jitter
//
// base counts weighted events up to the window end, period only those
// inside the window, and recency decays from the project's latest event.
// Each component is normalized by its own maximum before weighting.
func ScoreBlend(events []features.Event, w Window, cfg *Config) []Scored {
	slot := make(map[int64]int)
	var (
		ids    []int64
		base   []float64
		period []float64
		latest []int64
	)

	for i := range events {
		ev := &events[i]
		if !ev.At.Before(w.End) {
			continue
		}
		s, ok := slot[ev.ProjectID]
		if !ok {
			s = len(ids)
			slot[ev.ProjectID] = s
			ids = append(ids, ev.ProjectID)
			base = append(base, 0)
			period = append(period, 0)
			latest = append(latest, ev.At.UnixNano())
		}
		weight := cfg.Weights.Weight(ev.Kind)
		base[s] += weight
		if w.Contains(ev.At) {
			period[s] += weight
		}
		if ts := ev.At.UnixNano(); ts > latest[s] {
			latest[s] = ts
		}
	}
	if len(ids) == 0 {
		return nil
	}

	end := w.End.UnixNano()
	halfLife := cfg.RecencyHalfLife.Seconds()
	recency := make([]float64, len(ids))
	for s, ts := range latest {
		recency[s] = scoring.ExpDecay(float64(end-ts)/1e9, halfLife)
	}

	nb := scoring.NormalizeByMax(base)
	np := scoring.NormalizeByMax(period)
	nr := scoring.NormalizeByMax(recency)

	out := make([]Scored, len(ids))
	for s, id := range ids {
		score := cfg.BaseWeight*nb[s] + cfg.PeriodWeight*np[s] + cfg.RecencyWeight*nr[s]
		score += scoring.Jitter(cfg.TieBreakSalt, int(id), cfg.TieBreakEpsilon)
		out[s] = Scored{
			ProjectID: id,
			Score:     scoring.Clamp(score, 0, 1),
			Meta: map[string]float64{
				"base":    nb[s],
				"period":  np[s],
				"recency": nr[s],
			},
		}
	}
	return out
}
