// Package store implements the persistent collaborators of spec.md §4.2
// (StatusStore, C3) and §4.3 (HistoryStore, C4) over SQLite, matching the
// teacher's modernc.org/sqlite (pure Go, no CGO) persistence layer.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the shared *sql.DB handle and exposes HostStatusStore and
// HistoryStore as methods-with-receiver views over the same connection,
// the way the teacher's sqlite.DB fans out into Phase3/Phase4 method
// groups on one struct.
type DB struct {
	sql *sql.DB
}

// Open opens (and creates, if necessary) the SQLite database at dsn and
// applies the schema migrations.
func Open(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// SQLite serializes writers; a single connection avoids
	// "database is locked" errors under concurrent scheduler workers
	// while still letting the workcache/feasibility paths issue reads
	// without holding any in-process lock across them.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Exec runs a raw statement against the underlying connection. It exists so
// other packages' tests can seed workunit/result rows without HistoryStore
// growing write methods it has no production use for.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	return db.sql.Exec(query, args...)
}

func (db *DB) migrate() error {
	stmts := append(hostStatusMigrations(), historyMigrations()...)
	for _, stmt := range stmts {
		if _, err := db.sql.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
