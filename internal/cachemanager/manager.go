// Package cachemanager provides a generic TTL cache used for hot query
// paths, backed by go-cache. The registry keeps its capability index
// lookups here and flushes on any catalog mutation.
package cachemanager

import (
	"context"
	"time"
)

type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
