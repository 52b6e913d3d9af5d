// Package cache provides an optional Redis cache for catalog page responses.
//
// The catalog is a public API whose listing pages change rarely. Caching the
// raw body of each offset/limit window lets repeated extractions of the same
// window produce identical batch files without another network round trip.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, time.Hour)
//
//	key := cache.CacheKey{
//		Endpoint:    "/api/v2/pokemon",
//		QueryParams: url.Values{"limit": {"10"}, "offset": {"0"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the catalog, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, http.StatusOK, manager.TTL()))
//	}
//
// # Metrics
//
//   - pokedex_cache_hits_total
//   - pokedex_cache_misses_total
//   - pokedex_cache_errors_total{operation}
//
// Cache failures are never fatal to a fetch; callers log them and fall back to
// the network.
package cache
