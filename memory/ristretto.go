package memory

import (
	"errors"
	"sync"

	rc "github.com/dgraph-io/ristretto"
)

// Ristretto is a cost-bounded layer backed by dgraph-io/ristretto.
// Admission is TinyLFU-based, so a Set may be dropped under pressure; that only
// shrinks the memory tier and never breaks the memory ⊆ store invariant.
//
// The layer tracks the keys ristretto currently holds through its eviction and
// rejection callbacks, so it can list them (Ranger) and report an exact Len.
type Ristretto[V any] struct {
	c    *rc.Cache
	cost func(V) int64

	mu   sync.Mutex
	seq  uint64
	keys map[string]uint64 // key => seq of the admitted value
}

// ristretto hashes keys; the entry carries the string key back to callbacks
type rEntry[V any] struct {
	key string
	seq uint64
	v   V
}

var (
	_ Layer[struct{}] = (*Ristretto[struct{}])(nil)
	_ Ranger          = (*Ristretto[struct{}])(nil)
)

type RistrettoConfig[V any] struct {
	NumCounters int64 // ~10x the expected number of entries
	MaxCost     int64
	BufferItems int64 // 0 => 64
	// Cost of a value; nil => every entry costs 1 (MaxCost is then an entry count).
	Cost func(V) int64
}

func NewRistretto[V any](cfg RistrettoConfig[V]) (*Ristretto[V], error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 {
		return nil, errors.New("memory: invalid ristretto config")
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	l := &Ristretto[V]{cost: cfg.Cost, keys: make(map[string]uint64)}
	if l.cost == nil {
		l.cost = func(V) int64 { return 1 }
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        cfg.BufferItems,
		Metrics:            true,
		IgnoreInternalCost: true,
		OnEvict:            l.onExit,
		OnReject:           l.onExit,
	})
	if err != nil {
		return nil, err
	}
	l.c = c
	return l, nil
}

func (l *Ristretto[V]) onExit(item *rc.Item) {
	if e, ok := item.Value.(rEntry[V]); ok {
		l.forget(e.key, e.seq)
	}
}

// forget drops key unless it was set again after seq.
func (l *Ristretto[V]) forget(key string, seq uint64) {
	l.mu.Lock()
	if l.keys[key] == seq {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}

func (l *Ristretto[V]) Get(key string) (V, bool) {
	var zero V
	v, ok := l.c.Get(key)
	if !ok {
		return zero, false
	}
	e, ok := v.(rEntry[V])
	if !ok {
		// drop unexpected entry shape
		l.Delete(key)
		return zero, false
	}
	return e.v, true
}

// Set blocks until ristretto's write buffer is applied so an immediate Get
// observes the value (unless admission rejected it).
func (l *Ristretto[V]) Set(key string, value V) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.keys[key] = seq
	l.mu.Unlock()

	// callbacks take l.mu, so it is not held across ristretto calls
	if l.c.Set(key, rEntry[V]{key: key, seq: seq, v: value}, l.cost(value)) {
		l.c.Wait()
		return
	}
	l.forget(key, seq)
}

func (l *Ristretto[V]) Delete(key string) {
	l.c.Del(key)
	l.mu.Lock()
	delete(l.keys, key)
	l.mu.Unlock()
}

func (l *Ristretto[V]) Clear() {
	l.c.Clear()
	l.mu.Lock()
	clear(l.keys)
	l.mu.Unlock()
}

// Len is the number of keys ristretto currently holds.
func (l *Ristretto[V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

func (l *Ristretto[V]) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.keys))
	for k := range l.keys {
		keys = append(keys, k)
	}
	return keys
}

// Close stops ristretto's goroutines. The layer is unusable afterwards.
func (l *Ristretto[V]) Close() {
	l.c.Close()
}

// Metrics exposes ristretto's counters (not part of Layer).
func (l *Ristretto[V]) Metrics() *rc.Metrics { return l.c.Metrics }
