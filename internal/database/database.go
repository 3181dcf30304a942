// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "modernc.org/sqlite"

	"github.com/tomtom215/markit/internal/config"
	"github.com/tomtom215/markit/internal/logging"
)

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

const defaultQueryTimeout = 30 * time.Second

// DB wraps the SQL connection pool and provides marker data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// now is the clock used for createdDate. Tests replace it.
	now func() time.Time
}

// New opens the configured driver and bootstraps the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg.Path != MemoryPath {
		// 0750 per gosec G301
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	driverName, dsn, err := connectionString(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn: conn,
		cfg:  cfg,
		now:  time.Now,
	}

	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("driver", cfg.Driver).
		Str("path", cfg.Path).
		Msg("Database ready")

	return db, nil
}

func connectionString(cfg *config.DatabaseConfig) (driverName, dsn string, err error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		if cfg.Path == MemoryPath {
			return "sqlite", MemoryPath, nil
		}
		// WAL lets the public listing read while a submission commits.
		return "sqlite", cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
	case config.DriverDuckDB:
		if cfg.Path == MemoryPath {
			return "duckdb", "", nil
		}
		return "duckdb", cfg.Path + "?access_mode=read_write", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// configureConnectionPool sizes the pool. An in-memory database lives and
// dies with a single connection, so it is pinned to one.
func (db *DB) configureConnectionPool() {
	maxOpen := db.cfg.MaxOpenConns
	if db.cfg.Path == MemoryPath || maxOpen <= 0 {
		maxOpen = 1
	}
	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(maxOpen)
	if db.cfg.Path == MemoryPath {
		db.conn.SetConnMaxLifetime(0)
		db.conn.SetConnMaxIdleTime(0)
	}
}

func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	for _, stmt := range schemaFor(db.cfg.Driver) {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// schemaFor returns the bootstrap DDL. Both variants guarantee that ids
// are never reused, even after the newest row is deleted.
func schemaFor(driver string) []string {
	if driver == config.DriverDuckDB {
		return []string{
			`CREATE SEQUENCE IF NOT EXISTS markers_id_seq START 1`,
			`CREATE TABLE IF NOT EXISTS markers (
				id BIGINT PRIMARY KEY DEFAULT nextval('markers_id_seq'),
				location VARCHAR NOT NULL,
				text VARCHAR NOT NULL,
				color VARCHAR NOT NULL,
				image_url VARCHAR,
				created_date VARCHAR NOT NULL
			)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS markers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			location TEXT NOT NULL,
			text TEXT NOT NULL,
			color TEXT NOT NULL,
			image_url TEXT,
			created_date TEXT NOT NULL
		)`,
	}
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if err := db.conn.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// ensureContext applies the configured query timeout when ctx carries no
// deadline of its own.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := db.cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	if ctx == nil {
		return context.WithTimeout(context.Background(), timeout)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	return ctx, func() {}
}
