// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/projectrank/internal/trending"
)

// createTopProjects creates the ranked-window table if it is missing.
func (db *DB) createTopProjects(ctx context.Context) error {
	table := quoteIdent(db.cfg.Tables.TopProjects)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	window_type  VARCHAR NOT NULL,
	window_start TIMESTAMP NOT NULL,
	window_end   TIMESTAMP NOT NULL,
	project_id   BIGINT NOT NULL,
	"rank"       INTEGER NOT NULL,
	final_score  DOUBLE NOT NULL,
	meta         VARCHAR,
	computed_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (window_type, window_start, project_id)
)`, table)

	qctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(qctx, ddl)
	observe("create", db.cfg.Tables.TopProjects, start, err)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", db.cfg.Tables.TopProjects, err)
	}
	return nil
}

// SaveTopProjects replaces the stored rows of window w with rows, in one
// transaction. An empty rows clears the window.
//
// SaveTopProjects implements trending.Recorder.
func (db *DB) SaveTopProjects(ctx context.Context, w trending.Window, rows []trending.Ranked) (err error) {
	table := db.cfg.Tables.TopProjects
	start := time.Now()
	defer func() { observe("save_top_projects", table, start, err) }()

	qctx, cancel := db.withTimeout(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(qctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				db.logger.Warn().Err(rbErr).Msg("Failed to roll back top projects transaction")
			}
		}
	}()

	windowStart, windowEnd := w.Start.UTC(), w.End.UTC()

	del := fmt.Sprintf("DELETE FROM %s WHERE window_type = ? AND window_start = ?", quoteIdent(table))
	if _, err = tx.ExecContext(qctx, del, string(w.Kind), windowStart); err != nil {
		return fmt.Errorf("failed to clear window %s: %w", w, err)
	}

	if len(rows) > 0 {
		ins := fmt.Sprintf(`INSERT INTO %s (window_type, window_start, window_end, project_id, "rank", final_score, meta, computed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, quoteIdent(table))
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(qctx, ins)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer closeWithLog(stmt, db.logger, "prepared statement")

		now := time.Now().UTC()
		for i := range rows {
			r := &rows[i]
			var meta []byte
			meta, err = json.Marshal(r.Meta)
			if err != nil {
				return fmt.Errorf("failed to encode meta of project %d: %w", r.ProjectID, err)
			}
			if _, err = stmt.ExecContext(qctx, string(w.Kind), windowStart, windowEnd, r.ProjectID, r.Rank, r.Score, string(meta), now); err != nil {
				return fmt.Errorf("failed to insert project %d: %w", r.ProjectID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit window %s: %w", w, err)
	}

	db.logger.Debug().Str("window", w.String()).Int("rows", len(rows)).Msg("Top projects saved")
	return nil
}

// TopProjects reads the stored rows of the window of kind starting at start,
// ordered by rank.
func (db *DB) TopProjects(ctx context.Context, kind trending.WindowKind, start time.Time) ([]trending.Ranked, error) {
	table := db.cfg.Tables.TopProjects
	query := fmt.Sprintf(`SELECT project_id, "rank", final_score, meta FROM %s WHERE window_type = ? AND window_start = ? ORDER BY "rank"`, quoteIdent(table))

	qctx, cancel := db.withTimeout(ctx)
	defer cancel()

	began := time.Now()
	rows, err := db.conn.QueryContext(qctx, query, string(kind), start.UTC())
	if err != nil {
		observe("top_projects", table, began, err)
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	var out []trending.Ranked
	for rows.Next() {
		var (
			r    trending.Ranked
			meta sql.NullString
		)
		if err := rows.Scan(&r.ProjectID, &r.Rank, &r.Score, &meta); err != nil {
			observe("top_projects", table, began, err)
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &r.Meta); err != nil {
				observe("top_projects", table, began, err)
				return nil, fmt.Errorf("failed to decode meta of project %d: %w", r.ProjectID, err)
			}
		}
		out = append(out, r)
	}
	err = rows.Err()
	observe("top_projects", table, began, err)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return out, nil
}
