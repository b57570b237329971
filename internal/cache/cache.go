// Package cache stores raw forecast documents keyed by location, so repeated
// evaluations within a provider's freshness window reuse the same fetch. The
// upstream asks clients to respect its Expires header; the TTL passed to Set
// comes from there.
package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is one cached forecast document.
type Entry struct {
	// Body is the raw response body as fetched.
	Body []byte `json:"body"`
	// FetchedAt is when the document was retrieved from upstream.
	FetchedAt time.Time `json:"fetchedAt"`
	// ExpiresAt is when the entry stops being fresh.
	ExpiresAt time.Time `json:"expiresAt"`
}

// Cache is the interface for forecast document caching backends.
// Get returns fresh entries only; GetStale also returns expired entries
// younger than maxAge, for serving a last-known forecast when the upstream
// is down.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	GetStale(ctx context.Context, key string, maxAge time.Duration) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
}

// InMemoryCache implements Cache with a mutex-guarded map. Expired entries
// are dropped once they age past retention, on access.
type InMemoryCache struct {
	mu        sync.Mutex
	data      map[string]Entry
	retention time.Duration
}

// NewInMemoryCache creates an in-memory cache. retention bounds how long an
// expired entry stays retrievable via GetStale.
func NewInMemoryCache(retention time.Duration) *InMemoryCache {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &InMemoryCache{
		data:      make(map[string]Entry),
		retention: retention,
	}
}

// Get returns the entry for key if present and still fresh.
func (c *InMemoryCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return Entry{}, false, nil
	}
	now := time.Now()
	if now.After(entry.ExpiresAt) {
		if now.After(entry.ExpiresAt.Add(c.retention)) {
			delete(c.data, key)
		}
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// GetStale returns the entry for key if it was fetched within maxAge, even
// when it has expired.
func (c *InMemoryCache) GetStale(ctx context.Context, key string, maxAge time.Duration) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return Entry{}, false, nil
	}
	if time.Since(entry.FetchedAt) > maxAge {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Set stores the entry for key.
func (c *InMemoryCache) Set(ctx context.Context, key string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry
	return nil
}
