// Package cache provides a Redis-backed byte cache for downloaded images.
//
// The fetcher consults the cache before going to the network, so an image
// URL that reappears in the feed (or is shared between sessions of the same
// daemon) is served without a second download.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.KeyForURL("https://img.example.com/1.jpg")
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// miss - download the image
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - feed_cache_hits_total{layer="redis"} - Cache hits
//   - feed_cache_misses_total - Cache misses
//   - feed_cache_size_bytes{layer="redis"} - Cache size
//   - feed_cache_errors_total{operation} - Cache operation errors
package cache
