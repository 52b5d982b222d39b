package kv

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is absent or its TTL has elapsed.
var ErrKeyNotFound = errors.New("key not found")

// Store is a key-value store with per-key TTL. All pairing and session
// state lives here; losing it only forces the user to retry a short-lived
// interaction, never loses committed clinical data.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes key=value with the TTL only when the key is absent,
	// reporting whether the write happened. It is the atomic claim used
	// to enforce single-holder invariants.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
