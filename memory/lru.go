package memory

import (
	"container/list"
	"sync"
)

// LRU is a layer bounded by entry count. When full, Set evicts the least
// recently used entry. Get counts as a use.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	onEvict  func(key string)
}

type lruEntry[V any] struct {
	key   string
	value V
}

var (
	_ Layer[struct{}] = (*LRU[struct{}])(nil)
	_ Ranger          = (*LRU[struct{}])(nil)
)

// NewLRU returns a layer holding at most capacity entries.
// capacity <= 0 is treated as 1.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// OnEvict registers a callback run (under the layer lock) for capacity evictions.
// It is not called for Delete or Clear.
func (l *LRU[V]) OnEvict(fn func(key string)) {
	l.mu.Lock()
	l.onEvict = fn
	l.mu.Unlock()
}

func (l *LRU[V]) Get(key string) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	elem, ok := l.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	l.order.MoveToFront(elem)
	return elem.Value.(*lruEntry[V]).value, true
}

func (l *LRU[V]) Set(key string, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if elem, ok := l.items[key]; ok {
		elem.Value.(*lruEntry[V]).value = value
		l.order.MoveToFront(elem)
		return
	}
	for l.order.Len() >= l.capacity {
		l.evictOldest()
	}
	l.items[key] = l.order.PushFront(&lruEntry[V]{key: key, value: value})
}

func (l *LRU[V]) Delete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if elem, ok := l.items[key]; ok {
		l.order.Remove(elem)
		delete(l.items, key)
	}
}

func (l *LRU[V]) Clear() {
	l.mu.Lock()
	l.items = make(map[string]*list.Element, l.capacity)
	l.order.Init()
	l.mu.Unlock()
}

func (l *LRU[V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// Keys returns keys from most to least recently used.
func (l *LRU[V]) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, l.order.Len())
	for e := l.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*lruEntry[V]).key)
	}
	return keys
}

// must be called with lock held
func (l *LRU[V]) evictOldest() {
	elem := l.order.Back()
	if elem == nil {
		return
	}
	ent := elem.Value.(*lruEntry[V])
	l.order.Remove(elem)
	delete(l.items, ent.key)
	if l.onEvict != nil {
		l.onEvict(ent.key)
	}
}
