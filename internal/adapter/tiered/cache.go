// Package tiered layers an in-process cache in front of a shared one.
package tiered

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Strob0t/taskpad/internal/port/cache"
)

// Cache reads the local level first and falls back to the shared level,
// copying shared hits into the local one. The shared level is optional and
// its failures never fail a read or write.
//
// Local entries live at most localTTL. Another instance's Delete only
// reaches the shared level, so localTTL bounds how stale a task list can be
// on this instance.
type Cache struct {
	local    cache.Cache
	shared   cache.Cache
	localTTL time.Duration

	localHits    atomic.Int64
	sharedHits   atomic.Int64
	misses       atomic.Int64
	sharedErrors atomic.Int64
}

// Stats counts lookups since start.
type Stats struct {
	L1Hits   int64 `json:"l1_hits"`
	L2Hits   int64 `json:"l2_hits"`
	Misses   int64 `json:"misses"`
	L2Errors int64 `json:"l2_errors"`
}

// New returns a two-level cache. shared may be nil. A localTTL of zero
// leaves local entries with the caller's TTL.
func New(local, shared cache.Cache, localTTL time.Duration) *Cache {
	return &Cache{local: local, shared: shared, localTTL: localTTL}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := c.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		c.localHits.Add(1)
		return val, true, nil
	}
	if c.shared == nil {
		c.misses.Add(1)
		return nil, false, nil
	}

	val, ok, err = c.shared.Get(ctx, key)
	switch {
	case err != nil:
		c.sharedErrors.Add(1)
		c.misses.Add(1)
		slog.WarnContext(ctx, "shared cache read failed", "key", key, "error", err)
		return nil, false, nil
	case !ok:
		c.misses.Add(1)
		return nil, false, nil
	}

	c.sharedHits.Add(1)
	if err := c.local.Set(ctx, key, val, c.localTTL); err != nil {
		slog.DebugContext(ctx, "local cache backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, c.capLocal(ttl)); err != nil {
		return err
	}
	if c.shared == nil {
		return nil
	}
	if err := c.shared.Set(ctx, key, value, ttl); err != nil {
		c.sharedErrors.Add(1)
		slog.WarnContext(ctx, "shared cache write failed", "key", key, "error", err)
	}
	return nil
}

// Delete clears both levels. A shared failure is returned because the stale
// entry would otherwise be copied back into the local level.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	if c.shared == nil {
		return nil
	}
	if err := c.shared.Delete(ctx, key); err != nil {
		c.sharedErrors.Add(1)
		return err
	}
	return nil
}

// Stats returns a snapshot of the lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{
		L1Hits:   c.localHits.Load(),
		L2Hits:   c.sharedHits.Load(),
		Misses:   c.misses.Load(),
		L2Errors: c.sharedErrors.Load(),
	}
}

func (c *Cache) capLocal(ttl time.Duration) time.Duration {
	if c.localTTL > 0 && (ttl <= 0 || ttl > c.localTTL) {
		return c.localTTL
	}
	return ttl
}
