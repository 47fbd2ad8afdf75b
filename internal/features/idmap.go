// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrLocked is returned when a locked map is asked to assign a new id.
var ErrLocked = errors.New("id map is locked")

// IDMap is the stable external id <-> dense index mapping.
//
// It is persisted as two JSON objects with string keys: a forward map
// ("<id>": index) and a reverse map ("<index>": id).
type IDMap struct {
	forward map[int64]int
	reverse map[int]int64
	maxIdx  int
	locked  bool
}

// NewIDMap returns an empty, unlocked map.
func NewIDMap() *IDMap {
	return &IDMap{
		forward: make(map[int64]int),
		reverse: make(map[int]int64),
		maxIdx:  -1,
	}
}

// Put assigns index to id. An id that is already mapped keeps its index.
// A locked map rejects unknown ids with ErrLocked.
func (m *IDMap) Put(id int64, index int) (int, error) {
	if idx, ok := m.forward[id]; ok {
		return idx, nil
	}
	if m.locked {
		return 0, ErrLocked
	}
	if index < 0 {
		return 0, fmt.Errorf("negative index %d for id %d", index, id)
	}
	if other, taken := m.reverse[index]; taken {
		return 0, fmt.Errorf("index %d already assigned to id %d", index, other)
	}
	m.forward[id] = index
	m.reverse[index] = id
	if index > m.maxIdx {
		m.maxIdx = index
	}
	return index, nil
}

// Index returns the dense index for id.
func (m *IDMap) Index(id int64) (int, bool) {
	idx, ok := m.forward[id]
	return idx, ok
}

// ID returns the external id at index.
func (m *IDMap) ID(index int) (int64, bool) {
	id, ok := m.reverse[index]
	return id, ok
}

// Len returns the number of mapped ids.
func (m *IDMap) Len() int { return len(m.forward) }

// Span returns max index + 1, the number of rows a matrix addressed by this
// map needs. Identity maps may be sparse, so Span can exceed Len.
func (m *IDMap) Span() int { return m.maxIdx + 1 }

// Lock freezes the map.
func (m *IDMap) Lock() { m.locked = true }

// Locked reports whether the map is frozen.
func (m *IDMap) Locked() bool { return m.locked }

// IDs returns every mapped id ordered by index.
func (m *IDMap) IDs() []int64 {
	idx := make([]int, 0, len(m.reverse))
	for i := range m.reverse {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]int64, len(idx))
	for i, ix := range idx {
		out[i] = m.reverse[ix]
	}
	return out
}

// Save writes the forward and reverse JSON objects atomically.
func (m *IDMap) Save(forwardPath, reversePath string) error {
	fwd := make(map[string]int, len(m.forward))
	for id, idx := range m.forward {
		fwd[strconv.FormatInt(id, 10)] = idx
	}
	rev := make(map[string]int64, len(m.reverse))
	for idx, id := range m.reverse {
		rev[strconv.Itoa(idx)] = id
	}

	if err := writeJSONAtomic(forwardPath, fwd); err != nil {
		return err
	}
	return writeJSONAtomic(reversePath, rev)
}

// LoadIDMap reads a forward map and its reverse companion. When the reverse
// file is missing it is derived from the forward map; when both exist they
// must agree.
func LoadIDMap(forwardPath, reversePath string) (*IDMap, error) {
	var fwd map[string]int
	if err := readJSON(forwardPath, &fwd); err != nil {
		return nil, err
	}

	m := NewIDMap()
	for key, idx := range fwd {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id %q in %s: %w", key, forwardPath, err)
		}
		if _, err := m.Put(id, idx); err != nil {
			return nil, fmt.Errorf("%s: %w", forwardPath, err)
		}
	}

	var rev map[string]int64
	err := readJSON(reversePath, &rev)
	switch {
	case errors.Is(err, ErrMissingFile):
		return m, nil
	case err != nil:
		return nil, err
	}

	for key, id := range rev {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("parse index %q in %s: %w", key, reversePath, err)
		}
		if got, ok := m.reverse[idx]; !ok || got != id {
			return nil, fmt.Errorf("reverse map %s disagrees with forward map at index %d", reversePath, idx)
		}
	}
	return m, nil
}
