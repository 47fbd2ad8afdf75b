// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import (
	"fmt"
	"strings"
	"time"
)

// Kind is an interaction kind.
type Kind uint8

const (
	KindView Kind = iota
	KindLike
	KindComment
)

// numKinds is the number of interaction kinds.
const numKinds = 3

// Kinds lists every interaction kind in a fixed order.
var Kinds = [numKinds]Kind{KindView, KindLike, KindComment}

func (k Kind) String() string {
	switch k {
	case KindView:
		return "view"
	case KindLike:
		return "like"
	case KindComment:
		return "comment"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses "view", "like" or "comment".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "view":
		return KindView, nil
	case "like":
		return KindLike, nil
	case "comment":
		return KindComment, nil
	default:
		return 0, fmt.Errorf("unknown interaction kind %q", s)
	}
}

// Event is a single interaction fact read from the source database.
type Event struct {
	UserID    int64
	ProjectID int64
	Kind      Kind
	At        time.Time
}

// EventWeights assigns a weight to each interaction kind.
type EventWeights struct {
	View    float64
	Like    float64
	Comment float64
}

// Weight returns the weight for kind k.
func (w EventWeights) Weight(k Kind) float64 {
	switch k {
	case KindView:
		return w.View
	case KindLike:
		return w.Like
	case KindComment:
		return w.Comment
	default:
		return 0
	}
}
