// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package trending ranks projects per day and per ISO week and publishes
// the result to top:day:<YYYYMMDD> and top:week:<ISOYEAR>W<WW>.
//
// Every run is a cold rebuild of one window from source events. Two scoring
// modes exist and a deployment uses exactly one:
//
//   - blend: weighted sum of base (all events up to the window end),
//     period (events inside the window) and recency (half-life decay from a
//     project's latest event), each normalized by its own maximum.
//   - trend_ratio: engagement inside the window (distinct viewers, distinct
//     likers and comment count, weighted) blended with its growth over an
//     EWMA baseline of the preceding windows.
//
// Both modes add the shared deterministic jitter, clamp to [0,1] and rank
// by descending score with ties broken by ascending project id.
package trending
