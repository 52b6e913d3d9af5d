package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sternrassler/pokedex-elt/internal/config"
	"github.com/Sternrassler/pokedex-elt/pkg/aggregate"
	"github.com/Sternrassler/pokedex-elt/pkg/cache"
	"github.com/Sternrassler/pokedex-elt/pkg/checkpoint"
	"github.com/Sternrassler/pokedex-elt/pkg/client"
	"github.com/Sternrassler/pokedex-elt/pkg/extract"
	"github.com/Sternrassler/pokedex-elt/pkg/load"
	"github.com/Sternrassler/pokedex-elt/pkg/logging"
	"github.com/Sternrassler/pokedex-elt/pkg/pipeline"
	"github.com/Sternrassler/pokedex-elt/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// app holds the wired pipeline and the resources it owns.
type app struct {
	pipeline *pipeline.Pipeline
	redis    *redis.Client
}

// newApp wires every stage from cfg. The page cache is attached only when a
// Redis address is configured and the server answers a ping.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.NewLogger("pokedex-elt")

	if dir := filepath.Dir(cfg.Database); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := storage.New(cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &app{}

	clientCfg := client.DefaultConfig()
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.Timeout = cfg.Timeout
	if cfg.UserAgent != "" {
		clientCfg.UserAgent = cfg.UserAgent
	}

	if cfg.CacheEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, page cache disabled")
			rdb.Close()
		} else {
			logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("Page cache enabled")
			a.redis = rdb
			clientCfg.Cache = cache.NewManager(rdb, cfg.CacheTTL)
		}
	}

	catalog, err := client.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create catalog client: %w", err)
	}

	checkpoints := checkpoint.NewStore(db)
	a.pipeline = pipeline.New(
		extract.New(catalog, checkpoints, extract.Config{
			OutputDir:   cfg.OutputDir,
			PreviewRows: cfg.PreviewRows,
		}),
		load.New(db, checkpoints, load.Config{PreviewRows: cfg.PreviewRows}),
		aggregate.New(db),
		cfg.Limit,
	)
	return a, nil
}

// Close releases the Redis connection, if any.
func (a *app) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}
