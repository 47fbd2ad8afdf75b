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
	"strings"
	"time"

	"github.com/tomtom215/projectrank/internal/features"
)

// UserProfiles returns one profile per known user: everyone with a token row
// plus everyone who appears in an event table. Users without tokens get an
// empty profile so they still own a (zero) feature row.
func (db *DB) UserProfiles(ctx context.Context) ([]features.UserProfile, error) {
	schema, err := db.loadSchema(ctx)
	if err != nil {
		return nil, err
	}

	tokens := make(map[int64][]string)
	if schema.userTokens != nil {
		if err := db.readUserTokens(ctx, schema.userTokens, tokens); err != nil {
			return nil, err
		}
	} else {
		db.logger.Warn().Msg("User token table not found, every user is cold start")
	}

	for i := range schema.events {
		if err := db.readEventUsers(ctx, &schema.events[i], tokens); err != nil {
			return nil, err
		}
	}

	out := make([]features.UserProfile, 0, len(tokens))
	for id, toks := range tokens {
		out = append(out, features.UserProfile{ID: id, Tokens: toks})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (db *DB) readUserTokens(ctx context.Context, src *tokenSource, into map[int64][]string) error {
	query := fmt.Sprintf("SELECT CAST(%s AS BIGINT), CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL",
		quoteIdent(src.user), quoteIdent(src.token), quoteIdent(src.table), quoteIdent(src.user))

	qctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(qctx, query)
	if err != nil {
		observe("user_tokens", src.table, start, err)
		return fmt.Errorf("failed to query %s: %w", src.table, err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	for rows.Next() {
		var (
			id  int64
			tok sql.NullString
		)
		if err := rows.Scan(&id, &tok); err != nil {
			observe("user_tokens", src.table, start, err)
			return fmt.Errorf("failed to scan %s: %w", src.table, err)
		}
		toks := into[id]
		if tok.Valid {
			if t := features.NormalizeToken(tok.String); t != "" {
				toks = append(toks, t)
			}
		}
		into[id] = toks
	}
	err = rows.Err()
	observe("user_tokens", src.table, start, err)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src.table, err)
	}
	return nil
}

func (db *DB) readEventUsers(ctx context.Context, src *eventSource, into map[int64][]string) error {
	user := quoteIdent(src.user)
	query := fmt.Sprintf("SELECT DISTINCT CAST(%s AS BIGINT) FROM %s WHERE %s IS NOT NULL", user, quoteIdent(src.table), user)

	qctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(qctx, query)
	if err != nil {
		observe("event_users", src.table, start, err)
		return fmt.Errorf("failed to query users of %s: %w", src.table, err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			observe("event_users", src.table, start, err)
			return fmt.Errorf("failed to scan users of %s: %w", src.table, err)
		}
		if _, ok := into[id]; !ok {
			into[id] = nil
		}
	}
	err = rows.Err()
	observe("event_users", src.table, start, err)
	if err != nil {
		return fmt.Errorf("failed to read users of %s: %w", src.table, err)
	}
	return nil
}

// ProjectProfiles returns every non-deleted project with its text fields and
// creation time, ordered by id.
func (db *DB) ProjectProfiles(ctx context.Context) ([]features.ProjectProfile, error) {
	schema, err := db.loadSchema(ctx)
	if err != nil {
		return nil, err
	}
	src := schema.projects
	if src == nil {
		return nil, fmt.Errorf("projects: %w", ErrTableNotFound)
	}

	cols := []string{fmt.Sprintf("CAST(%s AS BIGINT)", quoteIdent(src.id))}
	for _, c := range src.text {
		cols = append(cols, quoteIdent(c))
	}
	if src.createdAt != "" {
		cols = append(cols, quoteIdent(src.createdAt))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s IS NOT NULL", strings.Join(cols, ", "), quoteIdent(src.table), quoteIdent(src.id))
	for _, d := range src.deleted {
		fmt.Fprintf(&b, " AND %s IS NULL", quoteIdent(d))
	}
	fmt.Fprintf(&b, " ORDER BY 1")

	qctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(qctx, b.String())
	if err != nil {
		observe("projects", src.table, start, err)
		return nil, fmt.Errorf("failed to query %s: %w", src.table, err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	var out []features.ProjectProfile
	for rows.Next() {
		var id int64
		vals := make([]any, len(src.text))
		created := new(any)
		dest := make([]any, 0, len(cols))
		dest = append(dest, &id)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if src.createdAt != "" {
			dest = append(dest, created)
		}
		if err := rows.Scan(dest...); err != nil {
			observe("projects", src.table, start, err)
			return nil, fmt.Errorf("failed to scan %s: %w", src.table, err)
		}

		p := features.ProjectProfile{ID: id}
		for _, v := range vals {
			p.Fields = append(p.Fields, textValues(v)...)
		}
		if at, ok := toTime(*created); ok {
			p.CreatedAt = at
		}
		out = append(out, p)
	}
	err = rows.Err()
	observe("projects", src.table, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.table, err)
	}
	return out, nil
}

// ProjectCreatedAt returns the creation time of every project that has one.
func (db *DB) ProjectCreatedAt(ctx context.Context) (map[int64]time.Time, error) {
	profiles, err := db.ProjectProfiles(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]time.Time, len(profiles))
	for i := range profiles {
		if !profiles[i].CreatedAt.IsZero() {
			out[profiles[i].ID] = profiles[i].CreatedAt
		}
	}
	return out, nil
}

// textValues flattens a scanned text column. DuckDB LIST columns arrive as
// []any; everything else is a single string.
func textValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []byte:
		return []string{string(t)}
	case []any:
		var out []string
		for _, e := range t {
			out = append(out, textValues(e)...)
		}
		return out
	case []string:
		return t
	default:
		return []string{fmt.Sprint(t)}
	}
}
