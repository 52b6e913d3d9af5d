// Package load appends batch files to the accumulated pokedex table and
// advances the checkpoint.
package load

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"

	"github.com/Sternrassler/pokedex-elt/pkg/checkpoint"
	"github.com/Sternrassler/pokedex-elt/pkg/columnar"
	"github.com/Sternrassler/pokedex-elt/pkg/logging"
	"github.com/Sternrassler/pokedex-elt/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	rowsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_rows_loaded_total",
		Help: "Total rows appended to the accumulated table",
	})

	malformedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokedex_malformed_records_total",
		Help: "Total batch loads rejected for a malformed resource URL",
	})
)

// idPattern extracts the numeric identifier from a resource URL.
var idPattern = regexp.MustCompile(`/pokemon/(\d+)/`)

var (
	insertSQL = fmt.Sprintf(
		"INSERT INTO %s (batch_offset, pokemon_id, name, url) VALUES (?, ?, ?, ?)",
		storage.PokedexTable)

	previewSQL = fmt.Sprintf(
		"SELECT pokemon_id, name, url FROM %s WHERE batch_offset = ? ORDER BY pokemon_id LIMIT ?",
		storage.PokedexTable)
)

// Row is one row of the accumulated table.
type Row struct {
	BatchOffset int
	PokemonID   int
	Name        string
	URL         string
}

// Config holds loader settings.
type Config struct {
	// PreviewRows is how many loaded rows are logged per batch; 0 disables it
	PreviewRows int
}

// Loader appends batch files to the accumulated table.
type Loader struct {
	db          *storage.Database
	checkpoints checkpoint.Writer
	config      Config
	logger      zerolog.Logger
}

// New creates a loader writing to db and advancing checkpoints.
func New(db *storage.Database, checkpoints checkpoint.Writer, cfg Config) *Loader {
	return &Loader{
		db:          db,
		checkpoints: checkpoints,
		config:      cfg,
		logger:      logging.NewLogger("load"),
	}
}

// ParseID returns the identifier embedded in a resource URL.
func ParseID(url string) (int, bool) {
	m := idPattern.FindStringSubmatch(url)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// Load appends every record of the batch file at path, tagged with
// batchOffset, then writes batchOffset as the checkpoint.
//
// Identifiers are derived for every record before anything is written: a
// malformed record fails the load with a *MalformedRecordError and no rows.
// The rows and the checkpoint are separate commits; if the checkpoint write
// fails the rows stay loaded. Loading the same file twice appends its rows
// twice.
func (l *Loader) Load(ctx context.Context, path string, batchOffset int) error {
	records, err := columnar.ReadParquet(ctx, path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	rows, err := toRows(path, batchOffset, records)
	if err != nil {
		malformedRecords.Inc()
		l.logger.Error().Err(err).Str("path", path).Msg("Rejected batch")
		return err
	}

	err = l.db.Tx(ctx, "append rows", func(tx *sql.Tx) error {
		if err := storage.EnsurePokedexTable(ctx, tx); err != nil {
			return err
		}
		return insertRows(ctx, tx, rows)
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	rowsLoaded.Add(float64(len(rows)))

	l.logger.Info().
		Str("path", path).
		Int("batch_offset", batchOffset).
		Int("rows", len(rows)).
		Msg("Data loaded")

	if err := l.logPreview(ctx, batchOffset); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	if err := l.checkpoints.Write(ctx, batchOffset); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func toRows(path string, batchOffset int, records []columnar.Row) ([]Row, error) {
	rows := make([]Row, len(records))
	for i, r := range records {
		id, ok := ParseID(r.URL)
		if !ok {
			return nil, &MalformedRecordError{Path: path, Row: i, URL: r.URL}
		}
		rows[i] = Row{BatchOffset: batchOffset, PokemonID: id, Name: r.Name, URL: r.URL}
	}
	return rows, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.BatchOffset, r.PokemonID, r.Name, r.URL); err != nil {
			return fmt.Errorf("insert pokemon %d: %w", r.PokemonID, err)
		}
	}
	return nil
}

// Preview returns up to n rows loaded under batchOffset, ordered by id.
func (l *Loader) Preview(ctx context.Context, batchOffset, n int) ([]Row, error) {
	var out []Row
	err := l.db.Do(ctx, "preview rows", func(db *sql.DB) error {
		if err := storage.EnsurePokedexTable(ctx, db); err != nil {
			return err
		}
		rows, err := db.QueryContext(ctx, previewSQL, batchOffset, n)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			r := Row{BatchOffset: batchOffset}
			if err := rows.Scan(&r.PokemonID, &r.Name, &r.URL); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (l *Loader) logPreview(ctx context.Context, batchOffset int) error {
	if l.config.PreviewRows <= 0 {
		return nil
	}

	rows, err := l.Preview(ctx, batchOffset, l.config.PreviewRows)
	if err != nil {
		return err
	}

	arr := zerolog.Arr()
	for _, r := range rows {
		arr.Dict(zerolog.Dict().Int("pokemon_id", r.PokemonID).Str("name", r.Name))
	}
	l.logger.Info().
		Int("batch_offset", batchOffset).
		Array("preview", arr).
		Msg("Preview loaded data")
	return nil
}
