// Package sqldb opens the relational backends (SQLite, PostgreSQL) behind one
// handle that knows its placeholder dialect.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // register "postgres" driver
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Dialect selects placeholder syntax and DDL flavour.
type Dialect int

// Supported dialects.
const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Config selects and locates the database.
type Config struct {
	Driver       string // sqlite | postgres
	Path         string // sqlite file, ":memory:" for tests
	DSN          string // postgres connection string
	MaxOpenConns int
}

// DB wraps the sql.DB connection pool with its dialect.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Wrap adopts an existing pool (tests, sqlmock).
func Wrap(db *sql.DB, d Dialect) *DB {
	return &DB{DB: db, dialect: d}
}

// Open opens the configured backend. No query is issued; call WaitForReady.
func Open(cfg Config) (*DB, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return openSQLite(cfg.Path)
	case "postgres":
		return openPostgres(cfg)
	default:
		return nil, fmt.Errorf("sqldb: unknown driver %q", cfg.Driver)
	}
}

func openSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqldb: sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("sqldb: create dir for %s: %w", path, err)
		}
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: open %s: %w", path, err)
	}
	// One writer avoids SQLITE_BUSY; it also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)
	return Wrap(db, SQLite), nil
}

func openPostgres(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqldb: postgres dsn is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqldb: open postgres: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return Wrap(db, Postgres), nil
}

// Dialect returns the placeholder dialect.
func (db *DB) Dialect() Dialect { return db.dialect }

// Rebind rewrites '?' placeholders to $n for PostgreSQL. Queries must not
// contain literal question marks.
func (db *DB) Rebind(query string) string {
	if db.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqldb: ping %s: %w", db.dialect, err)
	}
	return nil
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (db *DB) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := db.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// InTx runs fn inside a transaction, rolling back on error.
func (db *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
