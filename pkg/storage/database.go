// Package storage opens the pipeline's DuckDB database file per operation and
// defines its tables.
//
// Nothing holds the database open between calls: every Do or Tx opens the
// file, runs its function and closes it again, so one process step never
// keeps the file lock while the next one runs.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2" // registers the "duckdb" database/sql driver
)

// DriverName is the database/sql driver used for the pipeline database.
const DriverName = "duckdb"

// DefaultPath is the database file used when none is configured.
const DefaultPath = "pokedex.duckdb"

// Database is a handle on a DuckDB file. It is a value, not a connection.
type Database struct {
	path string
}

// New returns a handle on the database at path.
func New(path string) (*Database, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &Database{path: path}, nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Do opens the database, runs fn and closes it. Errors from fn that are not
// already StorageErrors are wrapped with op.
func (d *Database) Do(ctx context.Context, op string, fn func(db *sql.DB) error) (err error) {
	db, err := sql.Open(DriverName, d.path)
	if err != nil {
		return wrap("open", d.path, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = wrap("close", d.path, cerr)
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return wrap("open", d.path, err)
	}

	return wrap(op, d.path, fn(db))
}

// Tx runs fn inside a single transaction, committing when fn returns nil and
// rolling back otherwise.
func (d *Database) Tx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return d.Do(ctx, op, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}
