// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package scoring holds the numeric helpers shared by the inference engine
// and the trending aggregator: stable tie-break jitter, max normalization,
// clamping, temperature shaping and bounded top-K selection.
//
// Every function here is pure and deterministic. Score vectors are plain
// []float64 slices indexed by dense project index.
package scoring
