package tiercache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// LoadFunc fetches the authoritative value for key, e.g. from the network.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// GetOrLoad returns the cached value for key. On a miss it calls load, caches
// the result and returns it. Load errors are returned and nothing is cached.
func GetOrLoad[V any](ctx context.Context, c Cache[V], key string, load LoadFunc[V]) (V, error) {
	v, ok, err := c.Get(ctx, key)
	if err != nil || ok {
		return v, err
	}
	v, err = load(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	return v, c.Set(ctx, key, v)
}

// Loader is GetOrLoad with one load in flight per key: concurrent misses for
// the same key wait for the first caller's load.
type Loader[V any] struct {
	c    Cache[V]
	load LoadFunc[V]
	g    singleflight.Group
}

func NewLoader[V any](c Cache[V], load LoadFunc[V]) *Loader[V] {
	return &Loader[V]{c: c, load: load}
}

func (l *Loader[V]) Get(ctx context.Context, key string) (V, error) {
	v, ok, err := l.c.Get(ctx, key)
	if err != nil || ok {
		return v, err
	}
	res, err, _ := l.g.Do(key, func() (any, error) {
		return GetOrLoad(ctx, l.c, key, l.load)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ = res.(V)
	return v, nil
}
