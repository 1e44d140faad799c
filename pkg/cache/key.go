package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// keyPrefix namespaces feed image entries in Redis.
const keyPrefix = "feed:img:"

// Key identifies a cached image.
type Key struct {
	// URL is the absolute image URL.
	URL string
}

// KeyForURL builds the cache key for an image URL.
func KeyForURL(url string) Key {
	return Key{URL: url}
}

// String generates a deterministic Redis key. URLs are hashed so arbitrary
// length and characters never leak into the keyspace.
//
// Format: feed:img:<sha256 hex>
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.URL))
	return keyPrefix + hex.EncodeToString(sum[:])
}
