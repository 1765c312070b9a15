// Package ristretto implements the cache port with an in-process
// dgraph-io/ristretto cache. The bridge stores rendered poll responses of
// finished tasks here; entries are immutable once written.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// avgEntryBytes is the expected size of one rendered poll response, used
// to size the admission counters.
const avgEntryBytes = 512

// Cache is a size-bounded L1 cache of encoded responses.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache holding at most maxBytes of keys and values.
func New(maxBytes int64) (*Cache, error) {
	maxBytes = max(maxBytes, 1024)
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        max(maxBytes/avgEntryBytes*10, 100),
		MaxCost:            maxBytes,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &Cache{c: c}, nil
}

// Get returns the cached value for key. A miss is not an error.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.c.Get(key)
	return val, ok, nil
}

// Set stores value for ttl, charging the key and value size against the
// budget. The write is visible to Get once Set returns, unless the
// admission policy rejected it.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(key)+len(value)), ttl)
	c.c.Wait()
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// HitRatio reports the share of Gets served from the cache so far.
func (c *Cache) HitRatio() float64 {
	return c.c.Metrics.Ratio()
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
