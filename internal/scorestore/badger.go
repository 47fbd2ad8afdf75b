// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package scorestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/projectrank/internal/metrics"
)

// BadgerStore keeps each sorted set as one JSON value in an embedded
// BadgerDB. One transaction per Replace makes the swap atomic.
type BadgerStore struct {
	db      *badger.DB
	owned   bool
	limiter *rate.Limiter
}

// OpenBadgerStore opens (or creates) a database at path.
func OpenBadgerStore(path string, writesPerSecond float64, burst int) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	s := NewBadgerStore(db, writesPerSecond, burst)
	s.owned = true
	return s, nil
}

// NewBadgerStore wraps an open database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB, writesPerSecond float64, burst int) *BadgerStore {
	return &BadgerStore{db: db, limiter: newLimiter(writesPerSecond, burst)}
}

// Replace stores the whole set under key in one transaction.
func (s *BadgerStore) Replace(ctx context.Context, key string, entries []Entry) error {
	start := time.Now()
	if err := wait(ctx, s.limiter); err != nil {
		return err
	}

	next := dedupe(entries)
	sortEntries(next)

	err := s.db.Update(func(txn *badger.Txn) error {
		if len(next) == 0 {
			return txn.Delete([]byte(key))
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal entries: %w", err)
		}
		return txn.Set([]byte(key), data)
	})
	metrics.RecordStoreWrite("badger", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// Range reads the set at key.
func (s *BadgerStore) Range(ctx context.Context, key string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}

	if out == nil {
		return []Entry{}, nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Close closes the database if this store opened it.
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
