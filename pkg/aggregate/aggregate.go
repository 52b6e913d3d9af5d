// Package aggregate rebuilds the summary table from the accumulated pokedex.
package aggregate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Sternrassler/pokedex-elt/pkg/logging"
	"github.com/Sternrassler/pokedex-elt/pkg/storage"
	"github.com/rs/zerolog"
)

var (
	rebuildSQL = fmt.Sprintf(`
		CREATE OR REPLACE TABLE %s AS
		SELECT
			COUNT(*) AS total_pokemon,
			MIN(pokemon_id) AS first_id,
			MAX(pokemon_id) AS last_id
		FROM %s`, storage.StatsTable, storage.PokedexTable)

	selectSQL = fmt.Sprintf(
		"SELECT total_pokemon, first_id, last_id FROM %s", storage.StatsTable)
)

// Summary is the single row of the summary table. FirstID and LastID are
// NULL when the accumulated table is empty.
type Summary struct {
	Total   int64
	FirstID sql.NullInt64
	LastID  sql.NullInt64
}

// String renders the summary for logs.
func (s Summary) String() string {
	if !s.FirstID.Valid {
		return fmt.Sprintf("total=%d first=NULL last=NULL", s.Total)
	}
	return fmt.Sprintf("total=%d first=%d last=%d", s.Total, s.FirstID.Int64, s.LastID.Int64)
}

// Aggregator maintains the summary table.
type Aggregator struct {
	db     *storage.Database
	logger zerolog.Logger
}

// New creates an aggregator on db.
func New(db *storage.Database) *Aggregator {
	return &Aggregator{
		db:     db,
		logger: logging.NewLogger("aggregate"),
	}
}

// Aggregate replaces the summary table with the count, minimum and maximum
// identifier of the accumulated table and returns the new row. Running it on
// an empty database yields a total of zero.
func (a *Aggregator) Aggregate(ctx context.Context) (Summary, error) {
	var s Summary
	err := a.db.Tx(ctx, "aggregate", func(tx *sql.Tx) error {
		if err := storage.EnsurePokedexTable(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, rebuildSQL); err != nil {
			return fmt.Errorf("rebuild %s: %w", storage.StatsTable, err)
		}
		return scanSummary(ctx, tx, &s)
	})
	if err != nil {
		return Summary{}, err
	}

	a.logger.Info().
		Int64("total_pokemon", s.Total).
		Str("summary", s.String()).
		Msg("Aggregation table rebuilt")
	return s, nil
}

// Summary reads the current summary row without rebuilding it. It fails if
// Aggregate has never run against the database.
func (a *Aggregator) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := a.db.Do(ctx, "read summary", func(db *sql.DB) error {
		return scanSummary(ctx, db, &s)
	})
	return s, err
}

func scanSummary(ctx context.Context, q storage.Queryer, s *Summary) error {
	if err := q.QueryRowContext(ctx, selectSQL).Scan(&s.Total, &s.FirstID, &s.LastID); err != nil {
		return fmt.Errorf("read %s: %w", storage.StatsTable, err)
	}
	return nil
}
