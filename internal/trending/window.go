// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package trending

import (
	"fmt"
	"time"
)

// WindowKind is the aggregation period.
type WindowKind string

// Window kinds.
const (
	WindowDay  WindowKind = "day"
	WindowWeek WindowKind = "week"
)

// ParseWindowKind parses "day" or "week".
func ParseWindowKind(s string) (WindowKind, error) {
	switch WindowKind(s) {
	case WindowDay, WindowWeek:
		return WindowKind(s), nil
	default:
		return "", fmt.Errorf("unknown window kind %q (want day or week)", s)
	}
}

// Window is a half-open interval [Start, End) in one location.
type Window struct {
	Kind  WindowKind
	Start time.Time
	End   time.Time
}

// WindowBounds returns the window of kind containing at, evaluated in loc.
// A day runs from local midnight to the next midnight; a week runs from
// Monday 00:00 (ISO week) to the next Monday.
func WindowBounds(kind WindowKind, at time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	local := at.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch kind {
	case WindowDay:
		return Window{Kind: kind, Start: midnight, End: midnight.AddDate(0, 0, 1)}, nil
	case WindowWeek:
		sinceMonday := (int(local.Weekday()) + 6) % 7
		start := midnight.AddDate(0, 0, -sinceMonday)
		return Window{Kind: kind, Start: start, End: start.AddDate(0, 0, 7)}, nil
	default:
		return Window{}, fmt.Errorf("unknown window kind %q", kind)
	}
}

// Key is the score store key: top:day:YYYYMMDD or top:week:<ISOYEAR>W<WW>.
func (w Window) Key() string {
	if w.Kind == WindowWeek {
		year, week := w.Start.ISOWeek()
		return fmt.Sprintf("top:week:%dW%02d", year, week)
	}
	return "top:day:" + w.Start.Format("20060102")
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Previous returns the window immediately before w.
func (w Window) Previous() Window {
	days := 1
	if w.Kind == WindowWeek {
		days = 7
	}
	return Window{Kind: w.Kind, Start: w.Start.AddDate(0, 0, -days), End: w.Start}
}

// History returns the n windows preceding w, oldest first.
func (w Window) History(n int) []Window {
	if n <= 0 {
		return nil
	}
	out := make([]Window, n)
	cur := w
	for i := n - 1; i >= 0; i-- {
		cur = cur.Previous()
		out[i] = cur
	}
	return out
}

// String formats the window for logs.
func (w Window) String() string {
	return fmt.Sprintf("%s[%s, %s)", w.Kind, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
