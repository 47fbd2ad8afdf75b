// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import (
	"regexp"
	"sort"
	"strings"
)

// NoneToken seeds an otherwise empty vocabulary so matrices keep one column.
const NoneToken = "__none__"

var tokenSplitRe = regexp.MustCompile(`[,/|\s]+`)

// Tokenize lower-cases s and splits it on commas, slashes, pipes and
// whitespace. Empty tokens are dropped.
func Tokenize(s string) []string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return nil
	}
	parts := tokenSplitRe.Split(s, -1)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeToken trims and lower-cases a single token.
func NormalizeToken(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// Vocabulary maps tokens to matrix columns.
//
// A locked vocabulary never grows: Add returns false for unseen tokens.
// Vocabulary is not safe for concurrent mutation; it is built by a single
// encoding run and then read.
type Vocabulary struct {
	index  map[string]int
	width  int
	locked bool
}

// NewVocabulary returns an empty, unlocked vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{index: make(map[string]int)}
}

// vocabularyFromMap adopts a persisted token -> column map.
func vocabularyFromMap(m map[string]int) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int, len(m))}
	for tok, col := range m {
		if col < 0 {
			continue
		}
		v.index[tok] = col
		if col+1 > v.width {
			v.width = col + 1
		}
	}
	return v
}

// LoadVocabulary reads a vocabulary JSON object (token -> column).
func LoadVocabulary(path string) (*Vocabulary, error) {
	var m map[string]int
	if err := readJSON(path, &m); err != nil {
		return nil, err
	}
	return vocabularyFromMap(m), nil
}

// Save writes the vocabulary atomically as a JSON object.
func (v *Vocabulary) Save(path string) error {
	return writeJSONAtomic(path, v.index)
}

// Lock freezes the vocabulary.
func (v *Vocabulary) Lock() { v.locked = true }

// Locked reports whether the vocabulary is frozen.
func (v *Vocabulary) Locked() bool { return v.locked }

// Add returns the column for tok, assigning the next column when the
// vocabulary is unlocked and tok is new. ok is false when tok is unknown
// to a locked vocabulary.
func (v *Vocabulary) Add(tok string) (col int, ok bool) {
	if col, ok = v.index[tok]; ok {
		return col, true
	}
	if v.locked || tok == "" {
		return 0, false
	}
	col = v.width
	v.index[tok] = col
	v.width++
	return col, true
}

// Index returns the column for tok without modifying the vocabulary.
func (v *Vocabulary) Index(tok string) (int, bool) {
	col, ok := v.index[tok]
	return col, ok
}

// Len returns the number of tokens.
func (v *Vocabulary) Len() int { return len(v.index) }

// Width returns the number of matrix columns the vocabulary addresses.
func (v *Vocabulary) Width() int { return v.width }

// EnsureNonEmpty seeds NoneToken at column 0 when the vocabulary is empty.
func (v *Vocabulary) EnsureNonEmpty() {
	if len(v.index) == 0 {
		v.index[NoneToken] = 0
		v.width = 1
	}
}

// Tokens returns the tokens ordered by column.
func (v *Vocabulary) Tokens() []string {
	toks := make([]string, 0, len(v.index))
	for t := range v.index {
		toks = append(toks, t)
	}
	sort.Slice(toks, func(i, j int) bool { return v.index[toks[i]] < v.index[toks[j]] })
	return toks
}
