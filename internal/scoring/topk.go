// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package scoring

import "container/heap"

// Ranked is one selected index with its score.
type Ranked struct {
	Index int
	Score float64
}

// worse orders entries worst-first: lower score, then higher index.
func worse(a, b Ranked) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Index > b.Index
}

// worstFirst is a container/heap min-heap whose root is the entry evicted
// first once the selection is full.
type worstFirst []Ranked

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) { *h = append(*h, x.(Ranked)) }

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	*h = old[:n-1]
	return r
}

// TopK returns the k highest-scoring indices among scores that are at least
// minScore, ordered by descending score with ties broken by ascending index.
// k <= 0 keeps every qualifying index.
//
// Only a heap of size k is maintained, so the cost is O(n log k).
func TopK(scores []float64, k int, minScore float64) []Ranked {
	if k <= 0 || k > len(scores) {
		k = len(scores)
	}
	if k == 0 {
		return nil
	}

	h := make(worstFirst, 0, k)
	for i, s := range scores {
		if !finite(s) || s < minScore {
			continue
		}
		r := Ranked{Index: i, Score: s}
		switch {
		case h.Len() < k:
			heap.Push(&h, r)
		case worse(h[0], r):
			h[0] = r
			heap.Fix(&h, 0)
		}
	}

	out := make([]Ranked, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Ranked)
	}
	return out
}
