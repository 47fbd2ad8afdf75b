// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import "sort"

// BehaviorIndex holds, per user index, the project indices the user viewed,
// liked or commented on.
type BehaviorIndex struct {
	users map[int]*[numKinds]map[int]struct{}
}

// NewBehaviorIndex returns an empty index.
func NewBehaviorIndex() *BehaviorIndex {
	return &BehaviorIndex{users: make(map[int]*[numKinds]map[int]struct{})}
}

// BuildBehaviorIndex projects raw events onto dense indices. Events whose
// user or project is not in the maps are dropped.
func BuildBehaviorIndex(events []Event, users, projects *IDMap) *BehaviorIndex {
	b := NewBehaviorIndex()
	for i := range events {
		ev := &events[i]
		u, ok := users.Index(ev.UserID)
		if !ok {
			continue
		}
		p, ok := projects.Index(ev.ProjectID)
		if !ok {
			continue
		}
		b.Add(u, p, ev.Kind)
	}
	return b
}

// Add records that user u interacted with item p.
func (b *BehaviorIndex) Add(u, p int, k Kind) {
	if int(k) >= numKinds {
		return
	}
	sets, ok := b.users[u]
	if !ok {
		sets = &[numKinds]map[int]struct{}{}
		b.users[u] = sets
	}
	if sets[k] == nil {
		sets[k] = make(map[int]struct{})
	}
	sets[k][p] = struct{}{}
}

// Items returns the sorted item indices of kind k for user u.
func (b *BehaviorIndex) Items(u int, k Kind) []int {
	sets, ok := b.users[u]
	if !ok || int(k) >= numKinds {
		return nil
	}
	return sortedKeys(sets[k])
}

// Seen returns the sorted union of every kind for user u.
func (b *BehaviorIndex) Seen(u int) []int {
	sets, ok := b.users[u]
	if !ok {
		return nil
	}
	union := make(map[int]struct{})
	for _, s := range sets {
		for p := range s {
			union[p] = struct{}{}
		}
	}
	return sortedKeys(union)
}

// Kinds returns the kinds user u has at least one interaction of.
func (b *BehaviorIndex) Kinds(u int) []Kind {
	sets, ok := b.users[u]
	if !ok {
		return nil
	}
	var out []Kind
	for _, k := range Kinds {
		if len(sets[k]) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// Users returns the number of users with at least one interaction.
func (b *BehaviorIndex) Users() int { return len(b.users) }

func sortedKeys(m map[int]struct{}) []int {
	if len(m) == 0 {
		return nil
	}
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
