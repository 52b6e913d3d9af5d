//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/pokedex-elt/internal/testutil"
	"github.com/Sternrassler/pokedex-elt/pkg/cache"
	"github.com/Sternrassler/pokedex-elt/pkg/columnar"
	"github.com/Sternrassler/pokedex-elt/pkg/extract"
	"github.com/Sternrassler/pokedex-elt/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPageCache_SecondFetchServedFromRedis checks that a cached window is not
// requested again.
func TestPageCache_SecondFetchServedFromRedis(t *testing.T) {
	rdb := setupRedis(t)
	mock := testutil.NewMockCatalog(100)
	defer mock.Close()
	c := newCachedClient(t, mock, rdb)
	ctx := context.Background()
	w := pagination.Window{Offset: 20, Limit: 10}

	first, err := c.FetchPage(ctx, w)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, mock.RequestCount())

	second, err := c.FetchPage(ctx, w)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, mock.RequestCount(), "cached window must not hit the catalog")
	assert.Equal(t, first.Results, second.Results)

	other, err := c.FetchPage(ctx, w.Next())
	require.NoError(t, err)
	assert.False(t, other.Cached)
	assert.Equal(t, 2, mock.RequestCount())
}

// TestPageCache_ErrorsAreNotCached checks that a failed fetch leaves no entry
// behind.
func TestPageCache_ErrorsAreNotCached(t *testing.T) {
	rdb := setupRedis(t)
	mock := testutil.NewMockCatalog(100)
	defer mock.Close()
	c := newCachedClient(t, mock, rdb)
	ctx := context.Background()
	w := pagination.Window{Offset: 0, Limit: 10}

	mock.SetResponse(testutil.NewServerErrorResponse())
	_, err := c.FetchPage(ctx, w)
	require.Error(t, err)

	mock.ClearResponse()
	page, err := c.FetchPage(ctx, w)
	require.NoError(t, err)
	assert.False(t, page.Cached)
	assert.Len(t, page.Results, 10)
}

// TestPageCache_PurgeForcesRefetch checks that purging the endpoint drops
// every cached window.
func TestPageCache_PurgeForcesRefetch(t *testing.T) {
	rdb := setupRedis(t)
	mock := testutil.NewMockCatalog(100)
	defer mock.Close()
	c := newCachedClient(t, mock, rdb)
	ctx := context.Background()
	w := pagination.Window{Offset: 0, Limit: 10}

	for range 2 {
		_, err := c.FetchPage(ctx, w)
		require.NoError(t, err)
		_, err = c.FetchPage(ctx, w.Next())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, mock.RequestCount())

	purged, err := cache.NewManager(rdb, time.Minute).Purge(ctx, testutil.CatalogPath)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	page, err := c.FetchPage(ctx, w)
	require.NoError(t, err)
	assert.False(t, page.Cached)
	assert.Equal(t, 3, mock.RequestCount())
}

// TestExtract_IdempotentWithCache extracts the same window twice while the
// source changes in between; the cached page makes both files identical.
func TestExtract_IdempotentWithCache(t *testing.T) {
	rdb := setupRedis(t)
	mock := testutil.NewMockCatalog(50)
	defer mock.Close()
	s := newStack(t, newCachedClient(t, mock, rdb), 10)
	ctx := context.Background()

	first, err := s.extractor.Extract(ctx, 10, extract.Offset(0))
	require.NoError(t, err)
	before, err := columnar.ReadParquet(ctx, first.Path)
	require.NoError(t, err)

	mock.SetRecords(testutil.GenerateRecords(mock.URL(), 500, 50))

	second, err := s.extractor.Extract(ctx, 10, extract.Offset(0))
	require.NoError(t, err)
	after, err := columnar.ReadParquet(ctx, second.Path)
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, mock.RequestCount())
}

// TestPipeline_EndToEnd runs two cycles through the cache and checks the
// checkpoint and summary after each.
func TestPipeline_EndToEnd(t *testing.T) {
	rdb := setupRedis(t)
	mock := testutil.NewMockCatalog(1302)
	defer mock.Close()
	s := newStack(t, newCachedClient(t, mock, rdb), 10)
	ctx := context.Background()

	res, err := s.pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Batches[0].Offset)
	assert.Equal(t, 10, res.Batches[1].Offset)
	assert.Equal(t, int64(20), res.Summary.Total)

	offset, err := s.checkpoints.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, offset)

	res, err = s.pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Batches[0].Offset)
	assert.Equal(t, 30, res.Batches[1].Offset)
	assert.Equal(t, int64(40), res.Summary.Total)
	assert.Equal(t, int64(1), res.Summary.FirstID.Int64)
	assert.Equal(t, int64(40), res.Summary.LastID.Int64)

	stored, err := s.aggregator.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Summary, stored)

	offset, err = s.checkpoints.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, offset)
	assert.Equal(t, 4, mock.RequestCount())
}
