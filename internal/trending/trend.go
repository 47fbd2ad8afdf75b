// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package trending

import (
	"math"
	"sort"

	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/scoring"
)

// RawEngagement returns, per project active inside w,
// view_w*distinct viewers + like_w*distinct likers + comment_w*comments.
func RawEngagement(events []features.Event, w Window, weights features.EventWeights) map[int64]float64 {
	type counts struct {
		viewers  map[int64]struct{}
		likers   map[int64]struct{}
		comments int
	}
	per := make(map[int64]*counts)

	for i := range events {
		ev := &events[i]
		if !w.Contains(ev.At) {
			continue
		}
		c, ok := per[ev.ProjectID]
		if !ok {
			c = &counts{viewers: make(map[int64]struct{}), likers: make(map[int64]struct{})}
			per[ev.ProjectID] = c
		}
		switch ev.Kind {
		case features.KindView:
			c.viewers[ev.UserID] = struct{}{}
		case features.KindLike:
			c.likers[ev.UserID] = struct{}{}
		case features.KindComment:
			c.comments++
		}
	}

	out := make(map[int64]float64, len(per))
	for id, c := range per {
		out[id] = weights.View*float64(len(c.viewers)) +
			weights.Like*float64(len(c.likers)) +
			weights.Comment*float64(c.comments)
	}
	return out
}

// EWMA is the non-adjusted exponentially weighted mean of values (oldest
// first): s0 = x0, s = alpha*x + (1-alpha)*s.
func EWMA(values []float64, alpha float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := values[0]
	for _, x := range values[1:] {
		s = alpha*x + (1-alpha)*s
	}
	return s
}

// TrendScore clips raw/(baseline+eps) to [lo, hi] and rescales it to [0,1].
func TrendScore(raw, baseline, lo, hi float64) float64 {
	growth := scoring.Clamp(raw/(baseline+trendEpsilon), lo, hi)
	return (growth - lo) / (hi - lo)
}

// ScoreTrend scores every project active inside w.
//
//	engagement = clip(log1p(raw) / p95(log1p(raw)), 0, 1)
//	trend      = TrendScore(raw, EWMA(raw over history windows))
//	final      = alpha*engagement + (1-alpha)*trend + jitter
//
// The baseline only averages history windows in which the project was
// active; a project with no history has baseline 0 and trends at the cap.
func ScoreTrend(events []features.Event, w Window, cfg *Config) []Scored {
	current := RawEngagement(events, w, cfg.Weights)
	if len(current) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	logs := make([]float64, len(ids))
	for i, id := range ids {
		logs[i] = math.Log1p(current[id])
	}
	p95 := scoring.Quantile(logs, 0.95)
	if p95 <= 0 {
		p95 = 1
	}

	series := make(map[int64][]float64, len(ids))
	for _, hw := range w.History(cfg.HistoryWindows) {
		for id, raw := range RawEngagement(events, hw, cfg.Weights) {
			if _, active := current[id]; active {
				series[id] = append(series[id], raw)
			}
		}
	}

	alpha := cfg.alpha(w.Kind)
	out := make([]Scored, len(ids))
	for i, id := range ids {
		raw := current[id]
		engagement := scoring.Clamp(logs[i]/p95, 0, 1)
		baseline := EWMA(series[id], cfg.EWMAAlpha)
		trend := TrendScore(raw, baseline, cfg.TrendMin, cfg.TrendMax)

		score := alpha*engagement + (1-alpha)*trend
		score += scoring.Jitter(cfg.TieBreakSalt, int(id), cfg.TieBreakEpsilon)
		out[i] = Scored{
			ProjectID: id,
			Score:     scoring.Clamp(score, 0, 1),
			Meta: map[string]float64{
				"raw":      raw,
				"eng":      engagement,
				"trend":    trend,
				"baseline": baseline,
			},
		}
	}
	return out
}
