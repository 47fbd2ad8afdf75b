// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/projectrank/internal/features"
)

// timeLayouts are tried in order when a timestamp is stored as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Events returns every view, like and comment with from <= At < to, across
// all resolved event tables. A zero from or to leaves that side unbounded.
// Rows with a null user, project or timestamp are dropped.
//
// Events implements trending.EventSource.
func (db *DB) Events(ctx context.Context, from, to time.Time) ([]features.Event, error) {
	schema, err := db.loadSchema(ctx)
	if err != nil {
		return nil, err
	}

	var out []features.Event
	for i := range schema.events {
		evs, err := db.readEvents(ctx, &schema.events[i], from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, evs...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// AllEvents returns the full interaction history.
func (db *DB) AllEvents(ctx context.Context) ([]features.Event, error) {
	return db.Events(ctx, time.Time{}, time.Time{})
}

func (db *DB) readEvents(ctx context.Context, src *eventSource, from, to time.Time) ([]features.Event, error) {
	query, args := db.eventQuery(src, from, to)

	qctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(qctx, query, args...)
	if err != nil {
		observe("events", src.table, start, err)
		return nil, fmt.Errorf("failed to query %s: %w", src.table, err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	var (
		out     []features.Event
		badTime int
	)
	for rows.Next() {
		var (
			user, project sql.NullInt64
			raw           any
		)
		if err := rows.Scan(&user, &project, &raw); err != nil {
			observe("events", src.table, start, err)
			return nil, fmt.Errorf("failed to scan %s: %w", src.table, err)
		}
		if !user.Valid || !project.Valid {
			continue
		}
		at, ok := toTime(raw)
		if !ok {
			badTime++
			continue
		}
		// SQLite has no pushdown; DuckDB results pass through unchanged.
		if !from.IsZero() && at.Before(from) {
			continue
		}
		if !to.IsZero() && !at.Before(to) {
			continue
		}
		out = append(out, features.Event{
			UserID:    user.Int64,
			ProjectID: project.Int64,
			Kind:      src.kind,
			At:        at,
		})
	}
	err = rows.Err()
	observe("events", src.table, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.table, err)
	}

	if badTime > 0 {
		db.logger.Warn().Str("table", src.table).Int("rows", badTime).Msg("Dropped events with unreadable timestamps")
	}
	db.logger.Debug().Str("table", src.table).Int("events", len(out)).Msg("Events loaded")
	return out, nil
}

// eventQuery builds the SELECT for one source. Time bounds are pushed into
// the query for DuckDB only: SQLite timestamps are often text in mixed
// layouts, so they are filtered after parsing.
func (db *DB) eventQuery(src *eventSource, from, to time.Time) (string, []any) {
	user, project, ts := quoteIdent(src.user), quoteIdent(src.project), quoteIdent(src.ts)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT CAST(%s AS BIGINT), CAST(%s AS BIGINT), %s FROM %s WHERE %s IS NOT NULL AND %s IS NOT NULL AND %s IS NOT NULL",
		user, project, ts, quoteIdent(src.table), user, project, ts)

	var args []any
	for _, f := range src.filters {
		fmt.Fprintf(&b, " AND %s = ?", quoteIdent(f.Column))
		args = append(args, f.Value)
	}
	if db.Driver() == DriverDuckDB {
		if !from.IsZero() {
			fmt.Fprintf(&b, " AND %s >= ?", ts)
			args = append(args, from.UTC())
		}
		if !to.IsZero() {
			fmt.Fprintf(&b, " AND %s < ?", ts)
			args = append(args, to.UTC())
		}
	}
	return b.String(), args
}

// toTime converts a scanned timestamp value.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case int64:
		return unixTime(t), true
	case int32:
		return unixTime(int64(t)), true
	case float64:
		return unixTime(int64(t)), true
	default:
		return time.Time{}, false
	}
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unixTime(n), true
	}
	return time.Time{}, false
}

// unixTime reads n as seconds, or as milliseconds when it is too large to be
// seconds.
func unixTime(n int64) time.Time {
	if n > 1e12 || n < -1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
