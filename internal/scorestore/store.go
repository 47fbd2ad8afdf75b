// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package scorestore is the sorted key -> (member, score) store that both
// engines publish to and the read API serves from.
//
// Every write is a full replacement of one key. Backends guarantee that a
// concurrent reader sees either the complete old set or the complete new
// set, never a mix:
//   - redis: write a temporary key, then RENAME it over the live key
//   - badger: one transaction stores the whole set as a single value
//   - memory: a mutex-guarded slice swap
package scorestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/time/rate"
)

// Key prefixes.
const (
	RecsPrefix = "recs:"
	TopPrefix  = "top:"
)

// Entry is one member of a sorted set.
type Entry struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// Store is the score store contract.
type Store interface {
	// Replace atomically swaps the whole set at key. An empty entries slice
	// deletes the key.
	Replace(ctx context.Context, key string, entries []Entry) error

	// Range returns up to limit entries at key ordered by descending score,
	// ties by ascending member. limit <= 0 returns all. A missing key
	// returns an empty slice.
	Range(ctx context.Context, key string, limit int) ([]Entry, error)

	// Close releases backend resources.
	Close() error
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("score store is closed")

// RecsKey returns the personalized key for a user index.
func RecsKey(userIdx int) string {
	return RecsPrefix + strconv.Itoa(userIdx)
}

// sortEntries orders entries by descending score, ties by ascending member.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	})
}

// dedupe keeps the last score per member, as a sorted-set add would.
func dedupe(entries []Entry) []Entry {
	pos := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.Member]; ok {
			out[i].Score = e.Score
			continue
		}
		pos[e.Member] = len(out)
		out = append(out, e)
	}
	return out
}

// newLimiter returns a write limiter; perSecond <= 0 disables throttling.
func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// wait blocks on the limiter, honoring ctx.
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("write throttle: %w", err)
	}
	return nil
}
