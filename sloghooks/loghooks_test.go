package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestHooks(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestKeysAreRedacted(t *testing.T) {
	h, buf := newTestHooks(Options{})
	h.SelfHeal("profiles", "user-7", "corrupt")

	out := buf.String()
	if strings.Contains(out, "user-7") {
		t.Fatalf("raw key leaked: %q", out)
	}
	if !strings.Contains(out, "key="+h.redact("user-7")) || !strings.Contains(out, "reason=corrupt") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCustomRedact(t *testing.T) {
	h, buf := newTestHooks(Options{Redact: func(string) string { return "xxx" }})
	h.PopulateSkipped("audio", "t1")
	if !strings.Contains(buf.String(), "key=xxx") {
		t.Fatalf("custom redactor ignored: %q", buf.String())
	}
}

func TestSampling(t *testing.T) {
	h, buf := newTestHooks(Options{SelfHealEvery: 3})
	for i := 0; i < 9; i++ {
		h.SelfHeal("audio", "t", "expired")
	}
	if n := strings.Count(buf.String(), "tiercache.self_heal"); n != 3 {
		t.Fatalf("sampled lines = %d want 3", n)
	}
}

func TestStoreErrorRateLimit(t *testing.T) {
	h, buf := newTestHooks(Options{StoreErrorLimit: 2})
	for i := 0; i < 10; i++ {
		h.StoreError("audio", "get", errors.New("down"))
	}
	n := strings.Count(buf.String(), "tiercache.store_error")
	if n < 2 || n >= 10 {
		t.Fatalf("rate limited lines = %d", n)
	}
	if h.Suppressed() != uint64(10-n) {
		t.Fatalf("Suppressed = %d want %d", h.Suppressed(), 10-n)
	}
}

func TestClearErrorsLogAtError(t *testing.T) {
	h, buf := newTestHooks(Options{})
	h.StoreError("profiles", "clear", errors.New("locked"))
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("clear failure not logged at error: %q", buf.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	h := New(nil, Options{})
	h.SelfHeal("a", "b", "c")
	h.StoreError("a", "get", errors.New("x"))
	h.GenError("bump", errors.New("x"))
	h.RemoteInvalidation("a", 1, false)
	h.PopulateSkipped("a", "b")
}
