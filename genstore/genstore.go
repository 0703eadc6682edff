// Package genstore holds the generation counters the cache uses to detect
// invalidations made elsewhere.
//
// The cache bumps "epoch:<ns>" on ClearAll and "key:<ns>:<key>" on Set and
// Invalidate. A memory entry remembers the key counter it saw when mirrored;
// when it moves, the entry is stale.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use Local to share gens between caches in one process, or Redis between
// processes that share a store.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// SnapshotMany returns gens for many keys; missing => 0.
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}

// Shared reports whether gs is visible to other cache instances. The cache
// only tracks generations in shared stores.
func Shared(gs GenStore) bool {
	s, ok := gs.(interface{ Shared() bool })
	return ok && s.Shared()
}
