// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

/*
Package cache provides a small thread-safe LRU cache with per-entry TTL.

The read API uses it to hold recently served score ranges so that a burst
of identical requests costs one score store round trip.

# Behavior

  - Get, Add and Remove are O(1) using a map plus a doubly-linked list
  - Adding past capacity evicts the least recently used entry
  - Expiry is lazy: an expired entry is dropped when it is next read
  - Hit and miss counters are exposed through Stats

# Usage

	c := cache.NewLRU[[]scorestore.Entry](1024, 30*time.Second)
	if entries, ok := c.Get("top:day:20240305"); ok {
	    return entries
	}
	c.Add("top:day:20240305", entries)
*/
package cache
