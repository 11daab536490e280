// Package cache provides source response caching with a Redis backend.
//
// The cache manager keeps GET pages from the harvest sources and
// revalidates them with version-based conditional requests:
//
// - Library-version support (If-Modified-Since-Version / Last-Modified-Version)
// - Automatic TTL management with a conservative default
// - Prometheus metrics for observability
// - Deterministic cache key generation (credentials never appear in keys)
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Create cache key
//	key := cache.Key{
//		Source:   "2258643",
//		Endpoint: "/groups/2258643/items",
//		QueryParams: url.Values{"start": []string{"0"}, "limit": []string{"100"}},
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the source
//	}
//
// # Conditional Requests
//
//	// Check if we can revalidate instead of refetching
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// Source answers 304 if the library version has not moved
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - harvest_cache_hits_total{layer="redis"} - Cache hits
//   - harvest_cache_misses_total - Cache misses
//   - harvest_cache_size_bytes{layer="redis"} - Cache size
//   - harvest_304_responses_total - Conditional request successes
//   - harvest_conditional_requests_total - Conditional requests sent
//   - harvest_cache_errors_total{operation} - Cache operation errors
package cache
