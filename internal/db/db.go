// Package db persists the location registry in a SQLite database so that
// short-lived CLI invocations share state without a daemon.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql

	"github.com/go-ports/curloc/internal/models"
	"github.com/go-ports/curloc/internal/registry"
)

// SchemaVersion is recorded in the meta table. Bump it when adding migrations.
const SchemaVersion = 1

// DB wraps a *sql.DB with the path it was opened from.
// Concurrent processes coordinate through SQLite's file locks: WAL lets
// readers proceed during a write and busy_timeout makes writers queue instead
// of failing.
type DB struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ registry.Store = (*DB)(nil)

// Open opens (or creates) the SQLite database at path and initialises the schema.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("db.Open mkdir: %w", err)
	}
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("db.Open: %w", err)
	}
	d := &DB{db: sqldb, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := d.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("db.Open createSchema: %w", err)
	}
	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func (d *DB) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS locations (
			window_id     TEXT PRIMARY KEY,
			location      TEXT NOT NULL,
			writer_pid    INTEGER NOT NULL,
			program       TEXT NOT NULL DEFAULT '',
			nvim_pipe     TEXT NOT NULL DEFAULT '',
			registered_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, s)
		}
	}

	return d.SetMeta("schema_version", strconv.Itoa(SchemaVersion))
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Put upserts the entry for e.Window in a single statement, so readers
// observe either the previous row or the new one.
func (d *DB) Put(ctx context.Context, e models.Entry) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO locations (window_id, location, writer_pid, program, nvim_pipe, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(window_id) DO UPDATE SET
			location      = excluded.location,
			writer_pid    = excluded.writer_pid,
			program       = excluded.program,
			nvim_pipe     = excluded.nvim_pipe,
			registered_at = excluded.registered_at`,
		string(e.Window), string(e.Location), e.WriterPID, e.Program, e.NvimPipe, d.now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("db.Put: %w", err)
	}
	return nil
}

// Get returns the entry for window.
func (d *DB) Get(ctx context.Context, window models.WindowID) (models.Entry, bool, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT window_id, location, writer_pid, program, nvim_pipe, registered_at
		FROM locations WHERE window_id = ?`, string(window))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, false, nil
	}
	if err != nil {
		return models.Entry{}, false, fmt.Errorf("db.Get: %w", err)
	}
	return e, true, nil
}

// Evict deletes the entry for window. Deleting an absent row is not an error.
func (d *DB) Evict(ctx context.Context, window models.WindowID) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM locations WHERE window_id = ?`, string(window)); err != nil {
		return fmt.Errorf("db.Evict: %w", err)
	}
	return nil
}

// List returns all entries ordered by window.
func (d *DB) List(ctx context.Context) ([]models.Entry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT window_id, location, writer_pid, program, nvim_pipe, registered_at
		FROM locations ORDER BY window_id`)
	if err != nil {
		return nil, fmt.Errorf("db.List: %w", err)
	}
	defer rows.Close()

	out := make([]models.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("db.List scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear deletes every entry.
func (d *DB) Clear(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM locations`); err != nil {
		return fmt.Errorf("db.Clear: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

// GetMeta returns the value for key, or ("", false, nil) if not set.
func (d *DB) GetMeta(key string) (string, bool, error) {
	var val string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetMeta upserts a key-value pair in the meta table.
func (d *DB) SetMeta(key, value string) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value,
	)
	return err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.Entry, error) {
	var (
		window, loc, program, pipe, at string
		pid                            int
	)
	if err := s.Scan(&window, &loc, &pid, &program, &pipe, &at); err != nil {
		return models.Entry{}, err
	}
	registered, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return models.Entry{}, fmt.Errorf("parse registered_at %q: %w", at, err)
	}
	return models.Entry{
		Window:       models.WindowID(window),
		Location:     models.Location(loc),
		RegisteredAt: registered,
		WriterPID:    pid,
		Program:      program,
		NvimPipe:     pipe,
	}, nil
}
