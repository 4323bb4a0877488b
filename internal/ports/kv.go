package ports

import (
	"context"
	"time"
)

// KeyValueStore is the durable local medium behind the local session store and local accounts.
// Get returns (nil, nil) for a missing key. A non-positive ttl stores the value without expiry.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfNotExists atomically stores value only when key is absent and reports whether it did.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
}
