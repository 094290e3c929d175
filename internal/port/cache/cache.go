// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value cache. A miss is (nil, false, nil);
// a non-nil error means the backend failed and callers should fall through
// to the source of truth.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// WithPrefix returns a view of c that prepends prefix to every key, so
// several consumers can share one backend without colliding.
func WithPrefix(c Cache, prefix string) Cache {
	if p, ok := c.(prefixed); ok {
		return prefixed{inner: p.inner, prefix: p.prefix + prefix}
	}
	return prefixed{inner: c, prefix: prefix}
}

type prefixed struct {
	inner  Cache
	prefix string
}

func (p prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p prefixed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.inner.Set(ctx, p.prefix+key, value, ttl)
}

func (p prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}
