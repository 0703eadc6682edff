// Package memory provides the in-process tier of a tiercache.
//
// Layers hold decoded values keyed by cache key. Every operation is synchronous
// and cannot fail. Implementations must be safe for concurrent use.
package memory

import (
	"sync"
	"time"
)

// Item is what a cache keeps per key: the decoded value plus the metadata it
// checks on a memory hit.
type Item[V any] struct {
	Value    V
	StoredAt time.Time // when the store accepted the value; zero if unknown
	Gen      uint64    // key generation the value was mirrored at
}

// Layer is the memory tier contract.
type Layer[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Clear()
	Len() int
}

// Ranger is implemented by layers that can enumerate their keys.
// The cache's sync loop needs it to drop individually invalidated entries;
// layers without it only react to full (epoch) invalidation.
type Ranger interface {
	Keys() []string
}

// Map is an unbounded layer. Entries live until Delete or Clear.
type Map[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

var (
	_ Layer[struct{}] = (*Map[struct{}])(nil)
	_ Ranger          = (*Map[struct{}])(nil)
)

func NewMap[V any]() *Map[V] {
	return &Map[V]{m: make(map[string]V)}
}

func (l *Map[V]) Get(key string) (V, bool) {
	l.mu.RLock()
	v, ok := l.m[key]
	l.mu.RUnlock()
	return v, ok
}

func (l *Map[V]) Set(key string, value V) {
	l.mu.Lock()
	l.m[key] = value
	l.mu.Unlock()
}

func (l *Map[V]) Delete(key string) {
	l.mu.Lock()
	delete(l.m, key)
	l.mu.Unlock()
}

func (l *Map[V]) Clear() {
	l.mu.Lock()
	l.m = make(map[string]V)
	l.mu.Unlock()
}

func (l *Map[V]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.m)
}

func (l *Map[V]) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.m))
	for k := range l.m {
		keys = append(keys, k)
	}
	return keys
}
