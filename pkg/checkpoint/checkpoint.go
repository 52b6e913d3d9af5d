// Package checkpoint persists the last processed catalog offset.
//
// The checkpoint is a single-row table in the pipeline database. It is read
// when an extraction is not given an explicit offset and written at the end of
// every load; nothing else advances it.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Sternrassler/pokedex-elt/pkg/logging"
	"github.com/Sternrassler/pokedex-elt/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var checkpointOffset = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pokedex_checkpoint_offset",
	Help: "Last checkpoint offset read or written",
})

var (
	selectSQL = fmt.Sprintf("SELECT COALESCE(MAX(last_offset), 0) FROM %s", storage.CheckpointTable)
	countSQL  = fmt.Sprintf("SELECT COUNT(*) FROM %s", storage.CheckpointTable)
	updateSQL = fmt.Sprintf("UPDATE %s SET last_offset = ?", storage.CheckpointTable)
	insertSQL = fmt.Sprintf("INSERT INTO %s (last_offset) VALUES (?)", storage.CheckpointTable)
)

// Reader reads the current checkpoint.
type Reader interface {
	Read(ctx context.Context) (int, error)
}

// Writer overwrites the checkpoint.
type Writer interface {
	Write(ctx context.Context, offset int) error
}

// Store is the database-backed checkpoint.
type Store struct {
	db     *storage.Database
	logger zerolog.Logger
}

var (
	_ Reader = (*Store)(nil)
	_ Writer = (*Store)(nil)
)

// NewStore creates a checkpoint store on db.
func NewStore(db *storage.Database) *Store {
	return &Store{
		db:     db,
		logger: logging.NewLogger("checkpoint"),
	}
}

// Read returns the stored offset, or 0 if no checkpoint was ever written.
func (s *Store) Read(ctx context.Context) (int, error) {
	var offset int
	err := s.db.Do(ctx, "read checkpoint", func(db *sql.DB) error {
		if err := storage.EnsureCheckpointTable(ctx, db); err != nil {
			return err
		}
		return db.QueryRowContext(ctx, selectSQL).Scan(&offset)
	})
	if err != nil {
		return 0, err
	}

	checkpointOffset.Set(float64(offset))
	s.logger.Debug().Int("offset", offset).Msg("Checkpoint read")
	return offset, nil
}

// Write stores offset as the checkpoint, inserting the row on first use and
// overwriting it otherwise. The last writer wins.
func (s *Store) Write(ctx context.Context, offset int) error {
	err := s.db.Tx(ctx, "write checkpoint", func(tx *sql.Tx) error {
		if err := storage.EnsureCheckpointTable(ctx, tx); err != nil {
			return err
		}

		var rows int
		if err := tx.QueryRowContext(ctx, countSQL).Scan(&rows); err != nil {
			return fmt.Errorf("count checkpoint rows: %w", err)
		}

		if rows == 0 {
			if _, err := tx.ExecContext(ctx, insertSQL, offset); err != nil {
				return fmt.Errorf("insert checkpoint: %w", err)
			}
			return nil
		}
		if _, err := tx.ExecContext(ctx, updateSQL, offset); err != nil {
			return fmt.Errorf("update checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	checkpointOffset.Set(float64(offset))
	s.logger.Info().Int("offset", offset).Msg("Checkpoint advanced")
	return nil
}
