package cache

import (
	"context"
	"time"
)

// Cache is the read-through store in front of entitlement snapshots and user roles
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores value under key. A zero expiration uses the cache default.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	Delete(ctx context.Context, key string)

	Flush(ctx context.Context)
}

const (
	prefixSnapshot = "entitlement_snapshot:v1:"
	prefixRole     = "user_role:v1:"
)

// SnapshotKey is the key holding the cached entitlement snapshot of an account
func SnapshotKey(accountID string) string {
	return prefixSnapshot + accountID
}

// RoleKey is the key holding the cached role of an account's user
func RoleKey(accountID string) string {
	return prefixRole + accountID
}

// Lookup reads key from c and asserts it to T.
// A nil cache, a miss, or a value of another type all report false.
func Lookup[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	raw, found := c.Get(ctx, key)
	if !found {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// InvalidateAccount drops everything cached for an account
func InvalidateAccount(ctx context.Context, c Cache, accountID string) {
	if c == nil {
		return
	}
	c.Delete(ctx, SnapshotKey(accountID))
	c.Delete(ctx, RoleKey(accountID))
}
