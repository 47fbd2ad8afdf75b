// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package api

import (
	"context"
	"strconv"

	"github.com/tomtom215/projectrank/internal/cache"
	"github.com/tomtom215/projectrank/internal/metrics"
	"github.com/tomtom215/projectrank/internal/scorestore"
)

// cachedReader serves repeated Range calls from an LRU. Errors are never cached.
type cachedReader struct {
	next  ScoreReader
	cache *cache.LRU[[]scorestore.Entry]
}

func newCachedReader(next ScoreReader, c *cache.LRU[[]scorestore.Entry]) *cachedReader {
	return &cachedReader{next: next, cache: c}
}

func (c *cachedReader) Range(ctx context.Context, key string, limit int) ([]scorestore.Entry, error) {
	cacheKey := key + "#" + strconv.Itoa(limit)
	if entries, ok := c.cache.Get(cacheKey); ok {
		metrics.RecordCacheLookup(true)
		return entries, nil
	}
	metrics.RecordCacheLookup(false)

	entries, err := c.next.Range(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	c.cache.Add(cacheKey, entries)
	return entries, nil
}
