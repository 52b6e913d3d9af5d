package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/Sternrassler/pokedex-elt/internal/testutil"
	"github.com/Sternrassler/pokedex-elt/pkg/aggregate"
	"github.com/Sternrassler/pokedex-elt/pkg/checkpoint"
	"github.com/Sternrassler/pokedex-elt/pkg/client"
	"github.com/Sternrassler/pokedex-elt/pkg/extract"
	"github.com/Sternrassler/pokedex-elt/pkg/load"
	"github.com/Sternrassler/pokedex-elt/pkg/pipeline"
	"github.com/Sternrassler/pokedex-elt/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder fakes every stage and records the calls made to it.
type recorder struct {
	calls      []string
	extractErr error
	loadErr    error
	startAt    int
}

func (r *recorder) Extract(_ context.Context, limit int, startOffset *int) (extract.Batch, error) {
	offset := r.startAt
	if startOffset != nil {
		offset = *startOffset
	}
	r.calls = append(r.calls, "extract:"+strconv.Itoa(offset))
	if r.extractErr != nil {
		return extract.Batch{}, r.extractErr
	}
	return extract.Batch{
		Path:       "batch-" + strconv.Itoa(offset),
		Offset:     offset,
		NextOffset: offset + limit,
		Rows:       limit,
	}, nil
}

func (r *recorder) Load(_ context.Context, path string, batchOffset int) error {
	r.calls = append(r.calls, "load:"+path+"@"+strconv.Itoa(batchOffset))
	return r.loadErr
}

func (r *recorder) Aggregate(context.Context) (aggregate.Summary, error) {
	r.calls = append(r.calls, "aggregate")
	return aggregate.Summary{Total: 20}, nil
}

func TestRun_StepOrder(t *testing.T) {
	r := &recorder{startAt: 30}
	p := pipeline.New(r, r, r, 10)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"extract:30",
		"extract:40",
		"load:batch-30@40",
		"load:batch-40@50",
		"aggregate",
	}, r.calls)
	assert.Equal(t, 30, res.Batches[0].Offset)
	assert.Equal(t, 50, res.Batches[1].NextOffset)
	assert.Equal(t, int64(20), res.Summary.Total)
}

func TestRun_ExtractFailureAborts(t *testing.T) {
	boom := errors.New("boom")
	r := &recorder{extractErr: boom}

	_, err := pipeline.New(r, r, r, 10).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "extract batch 1")
	assert.Equal(t, []string{"extract:0"}, r.calls)
}

func TestRun_LoadFailureAborts(t *testing.T) {
	boom := errors.New("boom")
	r := &recorder{loadErr: boom}

	_, err := pipeline.New(r, r, r, 10).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load batch 1")
	assert.NotContains(t, r.calls, "aggregate")
}

type stack struct {
	pipeline    *pipeline.Pipeline
	checkpoints *checkpoint.Store
	outputDir   string
}

func newStack(t *testing.T, mock *testutil.MockCatalog, limit int) *stack {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.New(filepath.Join(dir, "pokedex.duckdb"))
	require.NoError(t, err)
	cp := checkpoint.NewStore(db)

	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.CatalogURL()
	cfg.Timeout = 2 * time.Second
	c, err := client.New(cfg)
	require.NoError(t, err)

	ex := extract.New(c, cp, extract.Config{OutputDir: dir, PreviewRows: 3})
	ld := load.New(db, cp, load.Config{PreviewRows: 3})
	agg := aggregate.New(db)

	return &stack{
		pipeline:    pipeline.New(ex, ld, agg, limit),
		checkpoints: cp,
		outputDir:   dir,
	}
}

func TestRun_FreshDatabase(t *testing.T) {
	mock := testutil.NewMockCatalog(1302)
	defer mock.Close()
	s := newStack(t, mock, 10)
	ctx := context.Background()

	res, err := s.pipeline.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.outputDir, "pokedex_0000000000.parquet"), res.Batches[0].Path)
	assert.Equal(t, 10, res.Batches[0].NextOffset)
	assert.Equal(t, filepath.Join(s.outputDir, "pokedex_0000000010.parquet"), res.Batches[1].Path)
	assert.Equal(t, 20, res.Batches[1].NextOffset)

	for _, b := range res.Batches {
		_, err := os.Stat(b.Path)
		assert.NoError(t, err)
	}

	offset, err := s.checkpoints.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, offset)

	assert.Equal(t, int64(20), res.Summary.Total)
	assert.Equal(t, int64(1), res.Summary.FirstID.Int64)
	assert.Equal(t, int64(20), res.Summary.LastID.Int64)
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	mock := testutil.NewMockCatalog(1302)
	defer mock.Close()
	s := newStack(t, mock, 10)
	ctx := context.Background()

	_, err := s.pipeline.Run(ctx)
	require.NoError(t, err)

	res, err := s.pipeline.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 20, res.Batches[0].Offset)
	assert.Equal(t, 30, res.Batches[1].Offset)

	offset, err := s.checkpoints.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, offset)

	assert.Equal(t, int64(40), res.Summary.Total)
	assert.Equal(t, int64(1), res.Summary.FirstID.Int64)
	assert.Equal(t, int64(40), res.Summary.LastID.Int64)
}

func TestRun_PastEndOfCatalog(t *testing.T) {
	mock := testutil.NewMockCatalog(15)
	defer mock.Close()
	s := newStack(t, mock, 10)
	ctx := context.Background()

	first, err := s.pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, first.Batches[0].Rows)
	assert.Equal(t, 5, first.Batches[1].Rows)
	assert.Equal(t, int64(15), first.Summary.Total)

	second, err := s.pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Batches[0].Rows)
	assert.Zero(t, second.Batches[1].Rows)
	assert.Equal(t, int64(15), second.Summary.Total)

	offset, err := s.checkpoints.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, offset, "offset advances by the limit even past the end")
}

func TestRun_FetchErrorLeavesCheckpoint(t *testing.T) {
	mock := testutil.NewMockCatalog(100)
	defer mock.Close()
	mock.SetResponse(testutil.NewServerErrorResponse())
	s := newStack(t, mock, 10)
	ctx := context.Background()

	_, err := s.pipeline.Run(ctx)
	require.Error(t, err)
	assert.True(t, client.IsFetchError(err))

	offset, err := s.checkpoints.Read(ctx)
	require.NoError(t, err)
	assert.Zero(t, offset)
}
