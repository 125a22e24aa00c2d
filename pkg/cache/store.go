package cache

import (
	"context"
	"time"
)

// Store is a minimal TTL key/value store. Implementations must treat a
// missing key as (nil, false, nil), reserving the error return for
// infrastructure failures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
