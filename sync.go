package tiercache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/tiercache/memory"
)

// startSync runs the loop that drops memory entries invalidated by other
// processes sharing the GenStore. Called with openMu held.
func (c *cache[V]) startSync() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stopSync = cancel
	c.syncDone = make(chan struct{})
	go func() {
		defer close(c.syncDone)
		t := time.NewTicker(c.syncEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.syncOnce(ctx)
			}
		}
	}()
}

// syncOnce compares memory against the shared generations. A moved epoch
// clears the whole layer. Otherwise, for layers that can list their keys,
// entries whose key generation moved since they were mirrored are dropped.
func (c *cache[V]) syncOnce(ctx context.Context) {
	octx, cancel := c.opCtx(ctx)
	defer cancel()

	ep, err := c.gen.Snapshot(octx, c.epochKey())
	if err != nil {
		c.genError("snapshot", err)
		return
	}
	if ep != c.lastEpoch.Load() {
		c.clearMu.Lock()
		n := c.mem.Len()
		c.mem.Clear()
		c.lastEpoch.Store(ep)
		c.clearMu.Unlock()
		c.log.Info("remote clear; memory dropped", logFields(c.ns, "", "entries", n))
		c.hooks.RemoteInvalidation(c.ns, n, true)
		return
	}

	r, ok := c.mem.(memory.Ranger)
	if !ok {
		return
	}
	keys := r.Keys()
	if len(keys) == 0 {
		return
	}

	dropped := 0
	for start := 0; start < len(keys); start += syncBatch {
		batch := keys[start:min(start+syncBatch, len(keys))]
		gks := make([]string, len(batch))
		for i, k := range batch {
			gks[i] = c.genKey(k)
		}
		cur, err := c.gen.SnapshotMany(octx, gks)
		if err != nil {
			c.genError("snapshot", err)
			return
		}
		for i, k := range batch {
			if c.dropIfStale(k, cur[gks[i]]) {
				dropped++
			}
		}
	}
	if dropped > 0 {
		c.log.Debug("remote invalidation; entries dropped", logFields(c.ns, "", "entries", dropped))
		c.hooks.RemoteInvalidation(c.ns, dropped, false)
	}
}

// dropIfStale removes key from memory when it was mirrored at a generation
// other than cur. The stripe lock keeps a concurrent re-mirror intact.
func (c *cache[V]) dropIfStale(key string, cur uint64) bool {
	mu := c.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	it, ok := c.mem.Get(key)
	if !ok || it.Gen == cur {
		return false
	}
	c.mem.Delete(key)
	return true
}
