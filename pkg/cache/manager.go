package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is used when a manager is created with a non-positive TTL.
const DefaultTTL = time.Hour

// scanBatch is the COUNT hint used when purging keys.
const scanBatch = 100

var (
	// ErrCacheMiss indicates the window is not cached or its entry expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored value could not be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores catalog responses in Redis. Any redis.Cmdable works, so a
// single node, a ring or a cluster client can back it.
type Manager struct {
	redis redis.Cmdable
	ttl   time.Duration
}

// NewManager creates a manager giving new entries ttl. It panics if rdb is nil.
func NewManager(rdb redis.Cmdable, ttl time.Duration) *Manager {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{redis: rdb, ttl: ttl}
}

// TTL returns the lifetime given to new entries.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Get returns the entry stored under key, or ErrCacheMiss. Expired entries
// still present in Redis are removed and reported as misses.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry := new(CacheEntry)
	if err := json.Unmarshal(data, entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return entry, nil
}

// Set stores entry under key until entry.Expires. Entries that are already
// expired are skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return errors.New("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the entry for key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Purge removes every cached window of endpoint and returns how many keys were
// deleted. An empty endpoint purges everything under KeyPrefix.
func (m *Manager) Purge(ctx context.Context, endpoint string) (int, error) {
	pattern := CacheKey{Endpoint: endpoint}.String() + ":*"
	if strings.Trim(endpoint, "/") == "" {
		pattern = KeyPrefix + ":*"
	}

	var purged int
	iter := m.redis.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		n, err := m.redis.Del(ctx, iter.Val()).Result()
		if err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
			return purged, fmt.Errorf("redis del: %w", err)
		}
		purged += int(n)
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		return purged, fmt.Errorf("redis scan: %w", err)
	}
	return purged, nil
}
