// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

/*
Package database reads the interaction and profile tables that feed the
feature encoder, the behavior index and the trending aggregator, and
persists the ranked trending windows.

# Drivers

Two drivers are supported, selected by database.driver:

  - duckdb (default): github.com/duckdb/duckdb-go/v2, OLAP friendly and
    able to push time-range predicates into the scan
  - sqlite: modernc.org/sqlite, pure Go, single connection

# Schema Mapping

Source tables differ between deployments, so every column is looked up
through a SchemaMapping: each logical column lists candidate names and the
first one present in the live schema is used. Mappings are resolved once
(ResolveSchema, or lazily on first use) and cached on the DB.

Missing event tables are skipped with a warning. A missing projects table
is an error when project profiles are requested.

# Tables Written

Only top_projects is written. SaveTopProjects replaces every row of one
window inside a single transaction:

	CREATE TABLE top_projects (
	    window_type  VARCHAR,   -- day | week
	    window_start TIMESTAMP,
	    window_end   TIMESTAMP,
	    project_id   BIGINT,
	    rank         INTEGER,
	    final_score  DOUBLE,
	    meta         VARCHAR,   -- JSON score components
	    computed_at  TIMESTAMP,
	    PRIMARY KEY (window_type, window_start, project_id)
	)

# Timestamps

TIMESTAMP values without a zone are read as UTC. Text timestamps (common in
SQLite) are parsed with the layouts in timeLayouts; integer columns are read
as Unix seconds.

# Thread Safety

DB is safe for concurrent use. Every query is bounded by
database.query_timeout and recorded in the projectrank_db_query_duration_seconds
histogram.
*/
package database
