// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package recommend implements the personalized inference engine.
//
// # Algorithm
//
// For every user index in the feature snapshot the engine builds one score
// per project:
//
//  1. A user with a non-zero feature row is scored by content similarity:
//     the dot product of the L2-normalized user and item embeddings,
//     computed in item chunks, scaled by ContentWeight.
//  2. A user with an all-zero feature row is a cold start and gets the
//     popularity/recency fallback blend in the same slot.
//  3. Behavior adjusts the vector: each interaction kind adds its weight to
//     the projects in that kind's set, or, with ExcludeSeen, every seen
//     project is forced to a large negative sentinel.
//  4. The vector is clamped to [0,1], shaped with score^(1/T), offset by a
//     deterministic per-project jitter and clamped again.
//  5. Projects below MinScore are dropped, the best TopK are kept and the
//     user's recs:<user_idx> key is replaced atomically.
//
// # Failure Handling
//
// A similarity chunk failing with ErrResourceExhausted is skipped and
// contributes nothing to the content term. A user whose scoring fails or
// panics is logged and counted; the run continues with the next user.
// Missing inputs (no users, no items, no snapshot) fail the run.
//
// # Usage
//
//	engine, err := recommend.NewEngine(recommend.FromConfig(&cfg.Inference), store, logger)
//	stats, err := engine.Run(ctx, &recommend.Inputs{
//	    Features: snap,
//	    Model:    net,
//	    Behavior: behavior,
//	    Fallback: fallback,
//	})
package recommend
