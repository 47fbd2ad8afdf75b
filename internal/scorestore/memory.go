// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package scorestore

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/projectrank/internal/metrics"
)

// MemoryStore is an in-process Store for tests, single-binary runs and
// local development.
type MemoryStore struct {
	mu     sync.RWMutex
	sets   map[string][]Entry
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string][]Entry)}
}

// Replace builds the new set off-lock and swaps it in.
func (s *MemoryStore) Replace(ctx context.Context, key string, entries []Entry) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}

	next := dedupe(entries)
	sortEntries(next)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(next) == 0 {
		delete(s.sets, key)
	} else {
		s.sets[key] = next
	}
	metrics.RecordStoreWrite("memory", time.Since(start), nil)
	return nil
}

// Range returns a copy of the set at key.
func (s *MemoryStore) Range(ctx context.Context, key string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	set := s.sets[key]
	if limit <= 0 || limit > len(set) {
		limit = len(set)
	}
	out := make([]Entry, limit)
	copy(out, set[:limit])
	return out, nil
}

// Keys returns the number of stored keys.
func (s *MemoryStore) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets)
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
