package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Table names in the pipeline database.
const (
	CheckpointTable = "checkpoint"
	PokedexTable    = "pokedex"
	StatsTable      = "pokemon_stats"
)

// createCheckpointSQL holds the single checkpoint row.
var createCheckpointSQL = fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		last_offset INTEGER NOT NULL
	)`, CheckpointTable)

// createPokedexSQL is the append-only accumulated table; batch_offset tags
// each row with the offset that closed its batch.
var createPokedexSQL = fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		batch_offset INTEGER NOT NULL,
		pokemon_id INTEGER NOT NULL,
		name VARCHAR,
		url VARCHAR
	)`, PokedexTable)

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EnsureCheckpointTable creates the checkpoint table if it does not exist.
func EnsureCheckpointTable(ctx context.Context, db Queryer) error {
	if _, err := db.ExecContext(ctx, createCheckpointSQL); err != nil {
		return fmt.Errorf("create %s table: %w", CheckpointTable, err)
	}
	return nil
}

// EnsurePokedexTable creates the accumulated table if it does not exist.
func EnsurePokedexTable(ctx context.Context, db Queryer) error {
	if _, err := db.ExecContext(ctx, createPokedexSQL); err != nil {
		return fmt.Errorf("create %s table: %w", PokedexTable, err)
	}
	return nil
}
