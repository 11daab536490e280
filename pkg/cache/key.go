package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached source response.
type Key struct {
	// Source is the source identifier (e.g., a library or site ID).
	// Never a credential: keys are visible in Redis.
	Source string

	// Endpoint is the request path (e.g., "/groups/2258643/items")
	Endpoint string

	// QueryParams are the request query parameters
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: harvest:source:endpoint:query1=val1:query2=val2
func (k Key) String() string {
	parts := []string{"harvest"}

	if k.Source != "" {
		parts = append(parts, k.Source)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism. Credentials passed as query
	// params (Omeka style) are excluded from the key.
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			if key == "key" {
				continue
			}
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
