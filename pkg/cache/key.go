package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "pokeapi"

// CacheKey identifies one cached catalog response.
type CacheKey struct {
	// Endpoint is the URL path of the catalog (e.g., "/api/v2/pokemon")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"limit": "10", "offset": "0"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
//
// Example:
//
//	pokeapi:api/v2/pokemon:limit=10:offset=20
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		keys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
