package tiercache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/genstore"
	"github.com/unkn0wn-root/tiercache/internal/util"
	"github.com/unkn0wn-root/tiercache/internal/wire"
	"github.com/unkn0wn-root/tiercache/memory"
	"github.com/unkn0wn-root/tiercache/store"
)

const syncBatch = 512

type cache[V any] struct {
	ns     string
	store  store.Store
	codec  codec.Codec[V]
	cloner codec.Cloner[V] // nil when values share nothing with callers
	format byte
	mem    memory.Layer[memory.Item[V]]
	log    Logger
	hooks  Hooks
	now    func() time.Time

	opTimeout time.Duration
	maxAge    time.Duration

	gen       genstore.GenStore // nil => generations are not tracked
	shared    bool              // gen is visible to other cache instances
	syncEvery time.Duration

	openMu   sync.Mutex
	opened   atomic.Bool
	closed   atomic.Bool
	stopSync context.CancelFunc
	syncDone chan struct{}

	// clearMu is held exclusively by ClearAll and shared by every section
	// that reads or writes the store and then touches memory.
	clearMu sync.RWMutex
	stripes [lockStripes]sync.Mutex

	lastEpoch atomic.Uint64
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, errors.New("tiercache: store is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("tiercache: codec is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("tiercache: namespace is required")
	}

	c := &cache[V]{
		ns:        opts.Namespace,
		store:     opts.Store,
		codec:     opts.Codec,
		format:    byte(codec.FormatOf(opts.Codec)),
		mem:       opts.Memory,
		opTimeout: max(opts.OpTimeout, 0),
		maxAge:    max(opts.MaxAge, 0),
		syncEvery: max(opts.SyncInterval, 0),
		gen:       opts.GenStore,
	}
	c.cloner, _ = opts.Codec.(codec.Cloner[V])

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if c.mem == nil {
		c.mem = memory.NewMap[memory.Item[V]]()
	}
	c.now = opts.Now
	if c.now == nil {
		c.now = time.Now
	}

	c.shared = c.gen != nil && genstore.Shared(c.gen)

	return c, nil
}

func (c *cache[V]) Open(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.ensureOpen(ctx)
}

// ensureOpen opens the store once. A failed open is retried by the next call.
// It must not be called while holding clearMu.
func (c *cache[V]) ensureOpen(ctx context.Context) error {
	if c.opened.Load() {
		return nil
	}
	c.openMu.Lock()
	defer c.openMu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if c.opened.Load() {
		return nil
	}

	octx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.store.Open(octx); err != nil {
		c.hooks.StoreError(c.ns, "open", err)
		return err
	}
	if c.syncing() {
		ep, err := c.gen.Snapshot(octx, c.epochKey())
		if err != nil {
			// lastEpoch stays 0; the first sync tick then clears memory once
			c.genError("snapshot", err)
		}
		c.lastEpoch.Store(ep)
		c.startSync()
	}
	c.opened.Store(true)
	c.log.Debug("store opened", logFields(c.ns, ""))
	return nil
}

func (c *cache[V]) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	c.openMu.Lock()
	stop, done := c.stopSync, c.syncDone
	c.openMu.Unlock()
	if stop != nil {
		stop()
		<-done
	}

	// wait for in-flight reads and writes
	c.clearMu.Lock()
	c.mem.Clear()
	c.clearMu.Unlock()

	// the genstore belongs to the caller; it may be shared with other caches
	return c.store.Close(ctx)
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if key == "" {
		return zero, false, ErrInvalidKey
	}
	if c.closed.Load() {
		return zero, false, ErrClosed
	}
	if it, ok := c.mem.Get(key); ok && c.fresh(it) {
		c.hooks.Hit(c.ns, LevelMemory)
		return c.clone(it.Value), true, nil
	}

	if err := c.ensureOpen(ctx); err != nil {
		if errors.Is(err, ErrClosed) {
			return zero, false, err
		}
		c.log.Warn("store unavailable; treating as miss", logFields(c.ns, key, "err", err))
		c.hooks.Miss(c.ns)
		return zero, false, nil
	}

	c.clearMu.RLock()
	defer c.clearMu.RUnlock()
	mu := c.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	// another reader may have mirrored it while we waited
	if it, ok := c.mem.Get(key); ok {
		if c.fresh(it) {
			c.hooks.Hit(c.ns, LevelMemory)
			return c.clone(it.Value), true, nil
		}
		// too old; the store copy is at least as old and self-heals below
		c.mem.Delete(key)
	}

	seen, mirrorOK := c.snapshotKey(ctx, key)

	raw, ok, err := c.storeGet(ctx, key)
	if err != nil {
		c.log.Warn("store read failed; treating as miss", logFields(c.ns, key, "err", err))
		c.hooks.StoreError(c.ns, "get", err)
		c.hooks.Miss(c.ns)
		return zero, false, nil
	}
	if !ok {
		c.hooks.Miss(c.ns)
		return zero, false, nil
	}

	v, storedAt, reason := c.unpack(raw)
	if reason != "" {
		c.selfHeal(ctx, key, reason)
		c.hooks.Miss(c.ns)
		return zero, false, nil
	}

	if mirrorOK {
		c.mirror(key, v, storedAt, seen)
	} else {
		c.hooks.PopulateSkipped(c.ns, key)
	}
	c.hooks.Hit(c.ns, LevelStore)
	return v, true, nil
}

func (c *cache[V]) Set(ctx context.Context, key string, value V) error {
	if key == "" {
		return ErrInvalidKey
	}
	if c.closed.Load() {
		return ErrClosed
	}

	payload, err := c.codec.Encode(value)
	if err != nil {
		c.log.Warn("encode failed; value not cached", logFields(c.ns, key, "err", err))
		return nil
	}
	storedAt := c.now()
	frame, err := wire.Encode(c.format, storedAt, payload)
	if err != nil {
		c.log.Warn("frame failed; value not cached", logFields(c.ns, key, "err", err))
		return nil
	}

	if err := c.ensureOpen(ctx); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		c.log.Warn("store unavailable; value not cached", logFields(c.ns, key, "err", err))
		return nil
	}

	c.clearMu.RLock()
	defer c.clearMu.RUnlock()
	mu := c.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	seen, mirrorOK := c.snapshotKey(ctx, key)

	if err := c.storePut(ctx, key, frame); err != nil {
		// memory keeps its previous value, which is still what the store holds
		c.log.Warn("store write failed; value not cached", logFields(c.ns, key, "err", err))
		c.hooks.StoreError(c.ns, "put", err)
		return nil
	}

	if c.shared {
		g, err := c.bump(ctx, c.genKey(key))
		if c.syncing() {
			// any other bump in between means another process touched the key
			mirrorOK = mirrorOK && err == nil && g == seen+1
			seen = g
		}
	}
	if !mirrorOK {
		c.mem.Delete(key)
		c.hooks.PopulateSkipped(c.ns, key)
		return nil
	}
	c.mirror(key, value, storedAt, seen)
	return nil
}

func (c *cache[V]) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if c.closed.Load() {
		return ErrClosed
	}
	openErr := c.ensureOpen(ctx)
	if errors.Is(openErr, ErrClosed) {
		return openErr
	}

	c.clearMu.RLock()
	defer c.clearMu.RUnlock()
	mu := c.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	c.mem.Delete(key)
	delErr := openErr
	if delErr == nil {
		delErr = c.storeDelete(ctx, key)
	}
	// bump after the delete so a concurrent reader elsewhere either misses or
	// mirrors at the old generation
	var bumpErr error
	if c.shared {
		_, bumpErr = c.bump(ctx, c.genKey(key))
	}

	if delErr != nil {
		c.log.Warn("store delete failed", logFields(c.ns, key, "err", delErr))
		c.hooks.StoreError(c.ns, "delete", delErr)
		return &InvalidateError{Key: key, BumpErr: bumpErr, DelErr: delErr}
	}
	c.log.Debug("invalidated key", logFields(c.ns, key))
	return nil
}

func (c *cache[V]) ClearAll(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	openErr := c.ensureOpen(ctx)
	if errors.Is(openErr, ErrClosed) {
		return openErr
	}

	c.clearMu.Lock()
	defer c.clearMu.Unlock()

	storeErr := openErr
	if storeErr == nil {
		storeErr = c.storeClear(ctx)
	}
	// memory goes regardless of the store outcome
	c.mem.Clear()
	if c.shared {
		if ep, err := c.bump(ctx, c.epochKey()); err == nil {
			c.lastEpoch.Store(ep)
		}
	}

	if storeErr != nil {
		c.log.Error("store clear failed; memory cleared", logFields(c.ns, "", "err", storeErr))
		c.hooks.StoreError(c.ns, "clear", storeErr)
		return &ClearError{Namespace: c.ns, Err: storeErr}
	}
	c.log.Info("cache cleared", logFields(c.ns, ""))
	return nil
}

// unpack returns the decoded value and its write time, or the self-heal
// reason when the entry must be discarded.
func (c *cache[V]) unpack(raw []byte) (V, time.Time, string) {
	var zero V
	e, err := wire.Decode(raw)
	if err != nil || e.Format != c.format {
		return zero, time.Time{}, "corrupt"
	}
	if c.expired(e.StoredAt) {
		return zero, time.Time{}, "expired"
	}
	v, err := c.codec.Decode(e.Payload)
	if err != nil {
		return zero, time.Time{}, "value_decode"
	}
	return v, e.StoredAt, ""
}

// expired reports whether an entry written at storedAt is past MaxAge. A zero
// time is unknown and never expires.
func (c *cache[V]) expired(storedAt time.Time) bool {
	return c.maxAge > 0 && !storedAt.IsZero() && c.now().Sub(storedAt) > c.maxAge
}

func (c *cache[V]) fresh(it memory.Item[V]) bool { return !c.expired(it.StoredAt) }

// clone copies v when the codec's values may alias caller or store buffers.
func (c *cache[V]) clone(v V) V {
	if c.cloner == nil {
		return v
	}
	return c.cloner.Clone(v)
}

func (c *cache[V]) selfHeal(ctx context.Context, key, reason string) {
	c.log.Debug("dropping unusable entry", logFields(c.ns, key, "reason", reason))
	c.hooks.SelfHeal(c.ns, key, reason)
	if err := c.storeDelete(ctx, key); err != nil {
		c.log.Warn("self-heal delete failed", logFields(c.ns, key, "err", err))
		c.hooks.StoreError(c.ns, "delete", err)
	}
}

// mirror keeps a private copy of v in memory together with the time the store
// accepted it and the key generation seen before the store call.
func (c *cache[V]) mirror(key string, v V, storedAt time.Time, gen uint64) {
	c.mem.Set(key, memory.Item[V]{Value: c.clone(v), StoredAt: storedAt, Gen: gen})
}

// snapshotKey returns the generation to stamp a mirrored entry with. ok is
// false when it is unknown and the entry must not be mirrored.
func (c *cache[V]) snapshotKey(ctx context.Context, key string) (uint64, bool) {
	if !c.syncing() {
		return 0, true
	}
	octx, cancel := c.opCtx(ctx)
	defer cancel()
	g, err := c.gen.Snapshot(octx, c.genKey(key))
	if err != nil {
		c.genError("snapshot", err)
		return 0, false
	}
	return g, true
}

func (c *cache[V]) bump(ctx context.Context, k string) (uint64, error) {
	octx, cancel := c.opCtx(ctx)
	defer cancel()
	g, err := c.gen.Bump(octx, k)
	if err != nil {
		c.genError("bump", err)
	}
	return g, err
}

func (c *cache[V]) genError(op string, err error) {
	c.log.Warn("genstore "+op+" failed", logFields(c.ns, "", "err", err))
	c.hooks.GenError(op, err)
}

func (c *cache[V]) storeGet(ctx context.Context, key string) ([]byte, bool, error) {
	octx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.store.Get(octx, key)
}

func (c *cache[V]) storePut(ctx context.Context, key string, b []byte) error {
	octx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.store.Put(octx, key, b)
}

func (c *cache[V]) storeDelete(ctx context.Context, key string) error {
	octx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.store.Delete(octx, key)
}

func (c *cache[V]) storeClear(ctx context.Context) error {
	octx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.store.Clear(octx)
}

func (c *cache[V]) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout > 0 {
		return context.WithTimeout(ctx, c.opTimeout)
	}
	return ctx, func() {}
}

func (c *cache[V]) stripe(key string) *sync.Mutex {
	return &c.stripes[util.Stripe(key, lockStripes)]
}

func (c *cache[V]) syncing() bool { return c.shared && c.syncEvery > 0 }

func (c *cache[V]) epochKey() string { return "epoch:" + c.ns }

func (c *cache[V]) genKey(key string) string {
	// isolate by namespace
	return "key:" + c.ns + ":" + key
}
