// Package storage provides the shared SQLite plumbing used by the ledger
// and session stores.
package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Options configures a SQLite database handle.
type Options struct {
	// Path to the SQLite database file. If empty, uses an in-memory database.
	Path string

	// CreateIfNotExists creates the parent directory if it doesn't exist.
	CreateIfNotExists bool
}

// Open opens (and if needed creates) a SQLite database and applies the
// given schema. The schema must be idempotent (CREATE TABLE IF NOT EXISTS).
func Open(opts Options, schema string) (*sql.DB, error) {
	var dsn string

	if opts.Path == "" {
		dsn = "file::memory:?cache=shared"
	} else {
		if opts.CreateIfNotExists {
			dir := filepath.Dir(opts.Path)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, &PersistenceError{Op: "create directory", Err: err}
			}
		}
		dsn = "file:" + opts.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &PersistenceError{Op: "open database", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "ping database", Err: err}
	}

	if schema != "" {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, &PersistenceError{Op: "init schema", Err: err}
		}
	}

	return db, nil
}
