// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package scoring

import (
	"math"
	"sort"
)

// NormalizeByMax returns a copy of values divided by their maximum.
// A maximum of zero (or below) yields an all-zero vector. Non-finite inputs
// are treated as zero.
func NormalizeByMax(values []float64) []float64 {
	out := make([]float64, len(values))
	maxV := 0.0
	for _, v := range values {
		if finite(v) && v > maxV {
			maxV = v
		}
	}
	if maxV <= 0 {
		return out
	}
	for i, v := range values {
		if finite(v) {
			out[i] = v / maxV
		}
	}
	return out
}

// Clamp01 clamps every entry of scores into [0, 1] in place.
// NaN becomes 0, +Inf becomes 1 and -Inf becomes 0.
func Clamp01(scores []float64) {
	for i, v := range scores {
		scores[i] = clamp(v, 0, 1)
	}
}

// Clamp clamps v into [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	return clamp(v, lo, hi)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// ApplyTemperature raises every entry to the power 1/t in place.
// Scores must already be clamped to [0, 1]; t == 1 is a no-op.
// t < 1 pushes high scores up, t > 1 flattens the distribution.
func ApplyTemperature(scores []float64, t float64) {
	if t <= 0 || t == 1 {
		return
	}
	exp := 1 / t
	for i, v := range scores {
		if v <= 0 {
			scores[i] = 0
			continue
		}
		scores[i] = math.Pow(v, exp)
	}
}

// Quantile returns the q-quantile of values using linear interpolation
// between closest ranks. It returns 0 for an empty slice.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q = clamp(q, 0, 1)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ExpDecay returns exp(-ln2/halfLife * age) for ages in seconds.
// Negative ages (events in the future) decay as age 0.
func ExpDecay(ageSeconds, halfLifeSeconds float64) float64 {
	if halfLifeSeconds <= 0 {
		return 0
	}
	if ageSeconds < 0 {
		ageSeconds = 0
	}
	return math.Exp(-math.Ln2 / halfLifeSeconds * ageSeconds)
}
