package tiercache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/genstore"
	"github.com/unkn0wn-root/tiercache/memory"
	"github.com/unkn0wn-root/tiercache/store"
)

// Cache is the two-tier cache API. V is the caller's value type;
// serialization is handled by a pluggable codec.Codec[V].
//
// Get and Set never report store or codec failures: they are logged, passed to
// Hooks and degrade to "absent" / "not cached". Only ErrInvalidKey and
// ErrClosed are returned from them.
type Cache[V any] interface {
	// Open opens the store. Other operations open lazily, so calling Open is
	// only needed to surface open errors early.
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	Get(ctx context.Context, key string) (v V, ok bool, err error)
	Set(ctx context.Context, key string, value V) error
	// Invalidate drops one key from both tiers.
	Invalidate(ctx context.Context, key string) error
	// ClearAll empties both tiers. Memory is emptied even when the store
	// fails, in which case a *ClearError is returned.
	ClearAll(ctx context.Context) error
}

// Options configure a Cache. Namespace, Store and Codec are required.
type Options[V any] struct {
	// Required
	Namespace string // isolates generations, logs and metrics. e.g. "audio", "profiles"
	Store     store.Store
	Codec     codec.Codec[V]

	Memory    memory.Layer[memory.Item[V]] // nil => memory.NewMap
	Logger    Logger                       // nil => NopLogger
	Hooks     Hooks                        // nil => NopHooks
	OpTimeout time.Duration                // bound on each store call; 0 => caller's ctx only
	MaxAge    time.Duration                // entries older than this read as absent from either tier; 0 => no limit

	// GenStore holds the namespace epoch and key generations. nil => none are
	// kept; a single cache instance needs none. A store shared with other
	// cache instances (genstore.Redis across processes, one genstore.Local
	// across caches in this process) makes their writes, invalidations and
	// clears visible to this one, see SyncInterval.
	GenStore genstore.GenStore
	// SyncInterval is how often memory is checked against a shared GenStore.
	// 0 disables the sync loop.
	SyncInterval time.Duration

	// Now overrides the clock used for entry ages. nil => time.Now.
	Now func() time.Time
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
