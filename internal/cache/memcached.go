package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "forecast:"

// MemcachedCache implements Cache using memcached. The memcached item
// expiration covers the stale-serve window too; freshness is decided against
// the entry's own ExpiresAt.
type MemcachedCache struct {
	client    *memcache.Client
	retention time.Duration
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated
// list (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
// retention bounds how long expired entries remain retrievable via GetStale.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int, retention time.Duration) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &MemcachedCache{client: client, retention: retention}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedCache) key(k string) string {
	return keyPrefix + k
}

func (c *MemcachedCache) lookup(ctx context.Context, key string) (Entry, bool, error) {
	if ctx.Err() != nil {
		return Entry{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Get implements Cache.Get. Returns false, nil on miss or expiry; false, err
// on backend error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	entry, ok, err := c.lookup(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if time.Now().After(entry.ExpiresAt) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// GetStale implements Cache.GetStale.
func (c *MemcachedCache) GetStale(ctx context.Context, key string, maxAge time.Duration) (Entry, bool, error) {
	entry, ok, err := c.lookup(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if time.Since(entry.FetchedAt) > maxAge {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Set implements Cache.Set. The memcached relative expiration stretches past
// ExpiresAt by the retention window so stale serves remain possible.
func (c *MemcachedCache) Set(ctx context.Context, key string, entry Entry) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	ttl := time.Until(entry.ExpiresAt) + c.retention
	expSec := int32(ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // memcached treats larger values as unix timestamps
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Ping checks if memcached is reachable. Used by the health endpoint.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
