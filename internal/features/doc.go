// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package features is the read-mostly feature store consumed by the
// inference engine.
//
// It owns:
//   - Dense multi-hot user and item matrices persisted as .npy files
//   - Token vocabularies (token -> column) with an optional lock
//   - Stable id <-> index maps persisted as forward and reverse JSON objects
//   - The behavior index (viewed/liked/commented project sets per user)
//   - Popularity and recency fallback signals for cold-start users
//
// Matrices are built once through MatrixBuilder and never mutated after
// Build. A fresh encoding run produces a new Snapshot which is published
// with an atomic pointer swap, so a reader holding the previous Snapshot
// keeps a consistent view.
//
// # Lock Mode
//
// When lock mode is on, existing vocabularies and id maps are reused as-is:
// unseen tokens and unseen ids are ignored rather than appended. This keeps
// the rows of an already trained model aligned with the same users and
// projects across runs.
package features
