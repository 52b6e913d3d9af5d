package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks page cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokedex_cache_hits_total",
			Help: "Total number of catalog page cache hits",
		},
	)

	// CacheMisses tracks page cache misses, including expired entries
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokedex_cache_misses_total",
			Help: "Total number of catalog page cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokedex_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "scan"
	)
)
