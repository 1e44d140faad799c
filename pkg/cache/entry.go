package cache

import (
	"time"
)

// Entry represents a cached image payload.
type Entry struct {
	// Data is the raw image bytes as downloaded.
	Data []byte `json:"data"`

	// ContentType is the Content-Type the origin served the image with.
	ContentType string `json:"content_type"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// FetchedAt is when the image was downloaded.
	FetchedAt time.Time `json:"fetched_at"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
