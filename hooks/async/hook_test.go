package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/tiercache"
)

type countingHooks struct {
	tiercache.NopHooks
	mu    sync.Mutex
	n     int
	block chan struct{}
}

func (c *countingHooks) Miss(string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingHooks) StoreError(string, string, error) { c.Miss("") }

func TestDeliversAndDrains(t *testing.T) {
	inner := &countingHooks{}
	h := New(inner, 2, 100)
	for i := 0; i < 50; i++ {
		h.Miss("audio")
	}
	h.StoreError("audio", "get", errors.New("x"))
	h.Close()

	if inner.n != 51 {
		t.Fatalf("delivered = %d want 51", inner.n)
	}
	if h.Dropped() != 0 {
		t.Fatalf("Dropped = %d", h.Dropped())
	}
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countingHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)
	for i := 0; i < 10; i++ {
		h.Miss("audio")
	}
	// one event in the worker, at most one queued
	if h.Dropped() < 8 {
		t.Fatalf("Dropped = %d want >= 8", h.Dropped())
	}
	close(inner.block)
	h.Close()
}

func TestAfterCloseIsSafe(t *testing.T) {
	h := New(tiercache.NopHooks{}, 1, 1)
	h.Close()
	h.Close()
	h.Miss("audio")
	if h.Dropped() != 1 {
		t.Fatalf("Dropped = %d want 1", h.Dropped())
	}
}
