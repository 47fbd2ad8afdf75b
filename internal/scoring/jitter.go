// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package scoring

import (
	"encoding/binary"
	"math"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// two64 is 2^64 as a float64.
const two64 = float64(1<<32) * float64(1<<32)

// Jitter returns a deterministic offset in [0, eps) for the given index.
//
// The value is blake2b-256(salt + ":" + index) with the first 8 bytes read
// big-endian and divided by 2^64. The same (salt, index, eps) always yields
// the same bits across processes and runs.
func Jitter(salt string, index int, eps float64) float64 {
	if eps <= 0 {
		return 0
	}
	sum := blake2b.Sum256([]byte(salt + ":" + strconv.Itoa(index)))
	u := binary.BigEndian.Uint64(sum[:8])
	return eps * (float64(u) / two64)
}

// AddJitter adds Jitter(salt, i, eps) to scores[i] in place.
func AddJitter(scores []float64, salt string, eps float64) {
	if eps <= 0 {
		return
	}
	for i := range scores {
		scores[i] += Jitter(salt, i, eps)
	}
}

// JitterVector returns the jitter offsets for n consecutive indices.
// Callers scoring many subjects against the same catalog compute it once.
func JitterVector(n int, salt string, eps float64) []float64 {
	out := make([]float64, n)
	if eps <= 0 {
		return out
	}
	for i := range out {
		out[i] = Jitter(salt, i, eps)
	}
	return out
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
