// Package asynchook moves hook delivery off the cache's hot path.
//
// Events go through a bounded queue to a fixed set of workers; when the queue
// is full the event is dropped and counted.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	audio, _ := tiercache.New(tiercache.Options[[]byte]{
//	    Namespace: "audio",
//	    Store:     st,
//	    Codec:     codec.Bytes{},
//	    Hooks:     hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/tiercache"
)

type Hooks struct {
	inner tiercache.Hooks
	q     chan func()
	wg    sync.WaitGroup

	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Uint64
}

var _ tiercache.Hooks = (*Hooks)(nil)

func New(inner tiercache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.q)
	h.mu.Unlock()
	h.wg.Wait()
}

// Dropped reports events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(ns string, l tiercache.Level) { h.try(func() { h.inner.Hit(ns, l) }) }
func (h *Hooks) Miss(ns string)                   { h.try(func() { h.inner.Miss(ns) }) }
func (h *Hooks) GenError(op string, err error)    { h.try(func() { h.inner.GenError(op, err) }) }
func (h *Hooks) SelfHeal(ns, k, r string) {
	h.try(func() { h.inner.SelfHeal(ns, k, r) })
}
func (h *Hooks) StoreError(ns, op string, err error) {
	h.try(func() { h.inner.StoreError(ns, op, err) })
}
func (h *Hooks) PopulateSkipped(ns, k string) {
	h.try(func() { h.inner.PopulateSkipped(ns, k) })
}
func (h *Hooks) RemoteInvalidation(ns string, n int, full bool) {
	h.try(func() { h.inner.RemoteInvalidation(ns, n, full) })
}
