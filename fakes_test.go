package tiercache

import (
	"context"
	"sync"

	"github.com/unkn0wn-root/tiercache/store"
)

// fakeStore is an in-memory store.Store with call counters and error injection.
type fakeStore struct {
	mu sync.Mutex
	m  map[string][]byte

	opens, gets, puts, deletes, clears int

	openErr, getErr, putErr, delErr, clearErr error

	// getGate, when set, is signalled on entry to Get and Get then waits for
	// release (or ctx) before reading.
	getGate chan struct{}
	release chan struct{}
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore { return &fakeStore{m: make(map[string][]byte)} }

func (s *fakeStore) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return s.openErr
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	gate, release := s.getGate, s.release
	s.mu.Unlock()
	if gate != nil {
		gate <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *fakeStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.m, key)
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	if s.clearErr != nil {
		return s.clearErr
	}
	clear(s.m)
	return nil
}

func (s *fakeStore) Close(context.Context) error { return nil }

func (s *fakeStore) raw(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *fakeStore) putRaw(key string, v []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *fakeStore) counts() (gets, puts, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.puts, s.deletes
}

func (s *fakeStore) set(fn func(s *fakeStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type hookEvent struct {
	kind, ns, key, detail string
}

type recordingHooks struct {
	mu     sync.Mutex
	events []hookEvent
}

func (h *recordingHooks) add(e hookEvent) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recordingHooks) Hit(ns string, l Level) { h.add(hookEvent{kind: "hit", ns: ns, detail: string(l)}) }
func (h *recordingHooks) Miss(ns string)         { h.add(hookEvent{kind: "miss", ns: ns}) }
func (h *recordingHooks) SelfHeal(ns, key, reason string) {
	h.add(hookEvent{kind: "selfheal", ns: ns, key: key, detail: reason})
}
func (h *recordingHooks) StoreError(ns, op string, _ error) {
	h.add(hookEvent{kind: "storeerr", ns: ns, detail: op})
}
func (h *recordingHooks) PopulateSkipped(ns, key string) {
	h.add(hookEvent{kind: "skipped", ns: ns, key: key})
}
func (h *recordingHooks) GenError(op string, _ error) { h.add(hookEvent{kind: "generr", detail: op}) }
func (h *recordingHooks) RemoteInvalidation(ns string, _ int, full bool) {
	d := "keys"
	if full {
		d = "full"
	}
	h.add(hookEvent{kind: "remote", ns: ns, detail: d})
}

func (h *recordingHooks) count(kind, detail string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.kind == kind && (detail == "" || e.detail == detail) {
			n++
		}
	}
	return n
}
