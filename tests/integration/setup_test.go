//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/pokedex-elt/internal/testutil"
	"github.com/Sternrassler/pokedex-elt/pkg/aggregate"
	"github.com/Sternrassler/pokedex-elt/pkg/cache"
	"github.com/Sternrassler/pokedex-elt/pkg/checkpoint"
	"github.com/Sternrassler/pokedex-elt/pkg/client"
	"github.com/Sternrassler/pokedex-elt/pkg/extract"
	"github.com/Sternrassler/pokedex-elt/pkg/load"
	"github.com/Sternrassler/pokedex-elt/pkg/pipeline"
	"github.com/Sternrassler/pokedex-elt/pkg/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for the duration of the test.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start Redis container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

// newCachedClient creates a catalog client for mock backed by the Redis page
// cache.
func newCachedClient(t *testing.T, mock *testutil.MockCatalog, rdb *redis.Client) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.CatalogURL()
	cfg.Timeout = 2 * time.Second
	cfg.Cache = cache.NewManager(rdb, time.Minute)

	c, err := client.New(cfg)
	require.NoError(t, err)
	return c
}

type stack struct {
	db          *storage.Database
	checkpoints *checkpoint.Store
	extractor   *extract.Extractor
	aggregator  *aggregate.Aggregator
	pipeline    *pipeline.Pipeline
	outputDir   string
}

func newStack(t *testing.T, fetcher client.Fetcher, limit int) *stack {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.New(filepath.Join(dir, "pokedex.duckdb"))
	require.NoError(t, err)

	cp := checkpoint.NewStore(db)
	ex := extract.New(fetcher, cp, extract.Config{OutputDir: dir, PreviewRows: 3})
	agg := aggregate.New(db)

	return &stack{
		db:          db,
		checkpoints: cp,
		extractor:   ex,
		aggregator:  agg,
		pipeline:    pipeline.New(ex, load.New(db, cp, load.Config{PreviewRows: 3}), agg, limit),
		outputDir:   dir,
	}
}
