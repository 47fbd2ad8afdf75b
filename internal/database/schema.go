// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/features"
)

// Filter restricts a table to rows where Column = Value. It is applied only
// when Column exists.
type Filter struct {
	Column string
	Value  string
}

// EventMapping describes one interaction table.
type EventMapping struct {
	Kind    features.Kind
	Table   string
	User    []string
	Project []string
	Time    []string
	Filters []Filter
}

// ProjectMapping describes the project table. Every Text column that exists
// contributes tokens. Deleted lists soft-delete columns; rows where one of
// them is non-null are skipped.
type ProjectMapping struct {
	Table     string
	ID        []string
	Text      []string
	CreatedAt []string
	Deleted   []string
}

// UserTokenMapping describes the long-format user token table: one row per
// (user, interest or position name).
type UserTokenMapping struct {
	Table string
	User  []string
	Token []string
}

// SchemaMapping lists candidate column names for every source table.
type SchemaMapping struct {
	Events      []EventMapping
	Projects    ProjectMapping
	UserTokens  UserTokenMapping
	TopProjects string
}

// DefaultSchemaMapping returns the candidate names used by the upstream
// service schema, for the table names in t.
func DefaultSchemaMapping(t config.TablesConfig) SchemaMapping {
	timeCols := []string{"ts", "created_at", "viewed_at", "updated_at"}
	return SchemaMapping{
		Events: []EventMapping{
			{
				Kind:    features.KindView,
				Table:   t.Views,
				User:    []string{"viewer_id", "user_id"},
				Project: []string{"project_id", "target_id"},
				Time:    timeCols,
			},
			{
				Kind:    features.KindLike,
				Table:   t.Likes,
				User:    []string{"user_id", "from_user_id"},
				Project: []string{"project_id", "target_id"},
				Time:    timeCols,
				Filters: []Filter{{Column: "target_type", Value: "PROJECT"}},
			},
			{
				Kind:    features.KindComment,
				Table:   t.Comments,
				User:    []string{"user_id", "author_id"},
				Project: []string{"project_id", "commentable_id"},
				Time:    timeCols,
				Filters: []Filter{{Column: "commentable_type", Value: "PROJECT"}},
			},
		},
		Projects: ProjectMapping{
			Table:     t.Projects,
			ID:        []string{"id", "project_id"},
			Text:      []string{"tools", "tags", "tech_stack", "stack", "languages", "skills", "skill_tags", "techs", "hashtags"},
			CreatedAt: []string{"created_at", "createdAt", "ts"},
			Deleted:   []string{"deleted_at"},
		},
		UserTokens: UserTokenMapping{
			Table: t.UserTokens,
			User:  []string{"user_id"},
			Token: []string{"token", "name", "interest", "position"},
		},
		TopProjects: t.TopProjects,
	}
}

// eventSource is a resolved EventMapping.
type eventSource struct {
	kind    features.Kind
	table   string
	user    string
	project string
	ts      string
	filters []Filter
}

// projectSource is a resolved ProjectMapping.
type projectSource struct {
	table     string
	id        string
	text      []string
	createdAt string
	deleted   []string
}

// tokenSource is a resolved UserTokenMapping.
type tokenSource struct {
	table string
	user  string
	token string
}

// Schema is a SchemaMapping resolved against the live database.
type Schema struct {
	events     []eventSource
	projects   *projectSource
	userTokens *tokenSource
	ResolvedAt time.Time
}

// EventTables lists the resolved event tables.
func (s *Schema) EventTables() []string {
	out := make([]string, len(s.events))
	for i := range s.events {
		out[i] = s.events[i].table
	}
	return out
}

// ResolveSchema resolves the mapping against the live schema and caches the
// result. It is safe to call more than once; later calls re-resolve.
func (db *DB) ResolveSchema(ctx context.Context) (*Schema, error) {
	db.schemaMu.Lock()
	defer db.schemaMu.Unlock()

	s, err := db.resolve(ctx, &db.mapping)
	if err != nil {
		return nil, err
	}
	db.schema = s
	return s, nil
}

// loadSchema returns the cached schema, resolving it on first use.
func (db *DB) loadSchema(ctx context.Context) (*Schema, error) {
	db.schemaMu.Lock()
	defer db.schemaMu.Unlock()

	if db.schema != nil {
		return db.schema, nil
	}
	s, err := db.resolve(ctx, &db.mapping)
	if err != nil {
		return nil, err
	}
	db.schema = s
	return s, nil
}

func (db *DB) resolve(ctx context.Context, m *SchemaMapping) (*Schema, error) {
	s := &Schema{ResolvedAt: time.Now()}

	for i := range m.Events {
		em := &m.Events[i]
		cols, err := db.columns(ctx, em.Table)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			db.logger.Warn().Str("table", em.Table).Str("kind", em.Kind.String()).Msg("Event table not found, skipping")
			continue
		}
		src := eventSource{
			kind:    em.Kind,
			table:   em.Table,
			user:    pick(cols, em.User),
			project: pick(cols, em.Project),
			ts:      pick(cols, em.Time),
		}
		if src.user == "" || src.project == "" || src.ts == "" {
			db.logger.Warn().
				Str("table", em.Table).
				Str("user_col", src.user).
				Str("project_col", src.project).
				Str("time_col", src.ts).
				Msg("Event table lacks a user, project or time column, skipping")
			continue
		}
		for _, f := range em.Filters {
			if col := pick(cols, []string{f.Column}); col != "" {
				src.filters = append(src.filters, Filter{Column: col, Value: f.Value})
			}
		}
		s.events = append(s.events, src)
	}

	cols, err := db.columns(ctx, m.Projects.Table)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		ps := &projectSource{
			table:     m.Projects.Table,
			id:        pick(cols, m.Projects.ID),
			createdAt: pick(cols, m.Projects.CreatedAt),
			text:      pickAll(cols, m.Projects.Text),
			deleted:   pickAll(cols, m.Projects.Deleted),
		}
		if ps.id != "" {
			s.projects = ps
		} else {
			db.logger.Warn().Str("table", m.Projects.Table).Msg("Project table has no id column")
		}
	}

	cols, err = db.columns(ctx, m.UserTokens.Table)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		ts := &tokenSource{
			table: m.UserTokens.Table,
			user:  pick(cols, m.UserTokens.User),
			token: pick(cols, m.UserTokens.Token),
		}
		if ts.user != "" && ts.token != "" {
			s.userTokens = ts
		}
	}

	db.logger.Info().
		Strs("event_tables", s.EventTables()).
		Bool("projects", s.projects != nil).
		Bool("user_tokens", s.userTokens != nil).
		Msg("Schema mapping resolved")
	return s, nil
}

// columns returns the columns of table keyed by lower-cased name. An empty
// map means the table does not exist.
func (db *DB) columns(ctx context.Context, table string) (map[string]string, error) {
	var query string
	switch db.Driver() {
	case DriverSQLite:
		query = "SELECT name FROM pragma_table_info(?)"
	default:
		query = "SELECT column_name FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position"
	}

	qctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(qctx, query, table)
	if err != nil {
		observe("columns", table, start, err)
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	cols := make(map[string]string)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			observe("columns", table, start, err)
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols[strings.ToLower(name)] = name
	}
	err = rows.Err()
	observe("columns", table, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	return cols, nil
}

// pick returns the first candidate present in cols, in its live spelling.
func pick(cols map[string]string, candidates []string) string {
	for _, c := range candidates {
		if name, ok := cols[strings.ToLower(c)]; ok {
			return name
		}
	}
	return ""
}

// pickAll returns every candidate present in cols, in candidate order.
func pickAll(cols map[string]string, candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if name, ok := cols[strings.ToLower(c)]; ok {
			out = append(out, name)
		}
	}
	return out
}

// quoteIdent quotes an identifier for both DuckDB and SQLite.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
