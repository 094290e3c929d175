// Package ristretto implements the cache port using dgraph-io/ristretto as L1 in-process cache.
package ristretto

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrNotAdmitted is returned by Set when ristretto drops or rejects the write.
var ErrNotAdmitted = errors.New("ristretto: value not admitted")

// minCounters keeps admission sane for very small budgets.
const minCounters = 1000

// Cache wraps a ristretto cache as an in-process L1 cache.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a ristretto-backed cache bounded to maxCostBytes of values.
func New(maxCostBytes int64) (*Cache, error) {
	counters := maxCostBytes / 100 * 10
	if counters < minCounters {
		counters = minCounters
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// NewMB is New with the budget given in megabytes.
func NewMB(mb int64) (*Cache, error) {
	return New(mb << 20)
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value with the given TTL. It returns once a Get observes the
// value, or ErrNotAdmitted if the admission policy or a full write buffer
// dropped it.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.c.SetWithTTL(key, value, int64(len(value)), ttl) {
		return ErrNotAdmitted
	}
	c.c.Wait()
	if _, ok := c.c.Get(key); !ok {
		return ErrNotAdmitted
	}
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
