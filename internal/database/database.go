// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/metrics"
)

const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"

	memoryPath = ":memory:"
)

// DB wraps the source database connection.
type DB struct {
	conn    *sql.DB
	cfg     config.DatabaseConfig
	mapping SchemaMapping
	logger  zerolog.Logger

	schemaMu sync.Mutex
	schema   *Schema
}

// Open opens the database named by cfg and makes sure top_projects exists.
// Column mappings are resolved on first use.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is nil")
	}

	if cfg.Path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	driver, dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	db := &DB{
		conn:    conn,
		cfg:     *cfg,
		mapping: DefaultSchemaMapping(cfg.Tables),
		logger:  logger.With().Str("driver", driver).Logger(),
	}
	db.configureConnectionPool()

	pingCtx, cancel := db.withTimeout(ctx)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	if err := db.createTopProjects(ctx); err != nil {
		closeQuietly(conn)
		return nil, err
	}

	db.logger.Info().Str("path", cfg.Path).Msg("Database opened")
	return db, nil
}

// dataSourceName builds the driver name and DSN for cfg.
func dataSourceName(cfg *config.DatabaseConfig) (string, string, error) {
	switch cfg.Driver {
	case DriverDuckDB, "":
		threads := cfg.Threads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}
		params := []string{"access_mode=read_write", fmt.Sprintf("threads=%d", threads)}
		if cfg.MaxMemory != "" {
			params = append(params, "max_memory="+cfg.MaxMemory)
		}
		return DriverDuckDB, cfg.Path + "?" + strings.Join(params, "&"), nil
	case DriverSQLite:
		// Times are written in one fixed layout so equality on window_start holds.
		return DriverSQLite, cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// configureConnectionPool sets connection pool parameters.
func (db *DB) configureConnectionPool() {
	if db.Driver() == DriverSQLite {
		// An in-memory SQLite database exists per connection, and a file
		// database serializes writers anyway.
		db.conn.SetMaxOpenConns(1)
		return
	}
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Driver returns the driver name in use.
func (db *DB) Driver() string {
	if db.cfg.Driver == "" {
		return DriverDuckDB
	}
	return db.cfg.Driver
}

// Conn exposes the underlying pool for ad-hoc queries and tests.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// withTimeout bounds ctx by the configured query timeout.
func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, db.cfg.QueryTimeout)
}

// observe records the duration and outcome of one query.
func observe(op, table string, start time.Time, err error) {
	metrics.RecordDBQuery(op, table, time.Since(start), err)
}
