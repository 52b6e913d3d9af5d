// Package pipeline runs one extract-load-aggregate cycle.
//
// A run extracts two consecutive batches starting at the checkpoint, loads
// each one tagged with the offset that follows it, and rebuilds the summary
// table. The first failing step aborts the run; steps already committed stay
// committed and the next run resumes from whatever checkpoint was written.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/pokedex-elt/pkg/aggregate"
	"github.com/Sternrassler/pokedex-elt/pkg/extract"
	"github.com/Sternrassler/pokedex-elt/pkg/logging"
	"github.com/rs/zerolog"
)

// BatchesPerRun is the number of batches extracted and loaded by Run.
const BatchesPerRun = 2

// Extractor writes one batch file.
type Extractor interface {
	Extract(ctx context.Context, limit int, startOffset *int) (extract.Batch, error)
}

// Loader appends one batch file.
type Loader interface {
	Load(ctx context.Context, path string, batchOffset int) error
}

// Aggregator rebuilds the summary table.
type Aggregator interface {
	Aggregate(ctx context.Context) (aggregate.Summary, error)
}

// Result describes a completed run.
type Result struct {
	Batches [BatchesPerRun]extract.Batch
	Summary aggregate.Summary
}

// Pipeline wires the stages of a run.
type Pipeline struct {
	extractor  Extractor
	loader     Loader
	aggregator Aggregator
	limit      int
	logger     zerolog.Logger
}

// New creates a pipeline fetching limit records per batch.
func New(ex Extractor, ld Loader, agg Aggregator, limit int) *Pipeline {
	return &Pipeline{
		extractor:  ex,
		loader:     ld,
		aggregator: agg,
		limit:      limit,
		logger:     logging.NewLogger("pipeline"),
	}
}

// Run executes one cycle. The first batch starts at the stored checkpoint,
// the second at the first batch's NextOffset; each batch is loaded with its
// own NextOffset, which becomes the checkpoint.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var res Result
	start := time.Now()

	p.logger.Info().Int("limit", p.limit).Msg("Pipeline started")

	var next *int
	for i := range res.Batches {
		batch, err := p.extractor.Extract(ctx, p.limit, next)
		if err != nil {
			return res, p.abort(fmt.Sprintf("extract batch %d", i+1), err)
		}
		res.Batches[i] = batch
		next = extract.Offset(batch.NextOffset)

		p.logger.Info().
			Int("batch", i+1).
			Int("offset", batch.Offset).
			Int("next_offset", batch.NextOffset).
			Str("path", batch.Path).
			Msg("Batch extracted")
	}

	for i, batch := range res.Batches {
		if err := p.loader.Load(ctx, batch.Path, batch.NextOffset); err != nil {
			return res, p.abort(fmt.Sprintf("load batch %d", i+1), err)
		}
		p.logger.Info().
			Int("batch", i+1).
			Int("batch_offset", batch.NextOffset).
			Int("rows", batch.Rows).
			Msg("Batch loaded")
	}

	summary, err := p.aggregator.Aggregate(ctx)
	if err != nil {
		return res, p.abort("aggregate", err)
	}
	res.Summary = summary

	p.logger.Info().
		Int64("total_pokemon", summary.Total).
		Int("checkpoint", res.Batches[BatchesPerRun-1].NextOffset).
		Dur("duration", time.Since(start)).
		Msg("Pipeline completed")
	return res, nil
}

func (p *Pipeline) abort(step string, err error) error {
	p.logger.Error().Err(err).Str("step", step).Msg("Pipeline aborted")
	return fmt.Errorf("%s: %w", step, err)
}
