package bigcache

import (
	"context"
	"errors"
	"testing"

	"github.com/unkn0wn-root/tiercache/store"
)

func TestLifecycleAndOps(t *testing.T) {
	ctx := context.Background()
	s := New(Config{Shards: 8})

	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotOpen) {
		t.Fatalf("Get before Open: want ErrNotOpen, got %v", err)
	}
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Open(ctx); err != nil {
		t.Fatalf("second Open: %v", err)
	}

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if v, ok, err := s.Get(ctx, "k"); err != nil || !ok || string(v) != "v" {
		t.Fatalf("Get = %q ok=%v err=%v", v, ok, err)
	}
	if err := s.Delete(ctx, "nope"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}

	_ = s.Put(ctx, "k2", []byte("v2"))
	if s.Len() != 2 {
		t.Fatalf("Len = %d want 2", s.Len())
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len after Clear = %d", s.Len())
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Put(ctx, "k", nil); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("Put after Close: want ErrClosed, got %v", err)
	}
	if err := s.Open(ctx); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("Open after Close: want ErrClosed, got %v", err)
	}
}

func TestCloseWithoutOpen(t *testing.T) {
	if err := New(Config{}).Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
