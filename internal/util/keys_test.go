package util

import (
	"strings"
	"testing"
)

func TestFileNameStableAndSafe(t *testing.T) {
	a := FileName("user-7", ".entry")
	b := FileName("user-7", ".entry")
	if a != b {
		t.Fatalf("FileName not deterministic: %q vs %q", a, b)
	}
	if len(a) != 32+len(".entry") {
		t.Fatalf("unexpected length %d for %q", len(a), a)
	}
	if strings.ContainsAny(FileName("../../etc/passwd", ""), `/\.`) {
		t.Fatalf("file name must not carry path characters")
	}
	if FileName("a", "") == FileName("b", "") {
		t.Fatalf("distinct keys should hash differently")
	}
}

func TestStripeInRange(t *testing.T) {
	for _, k := range []string{"", "a", "track-42", strings.Repeat("x", 1000)} {
		if s := Stripe(k, 64); s < 0 || s >= 64 {
			t.Fatalf("Stripe(%q) = %d out of range", k, s)
		}
	}
	if Stripe("same", 64) != Stripe("same", 64) {
		t.Fatalf("Stripe not deterministic")
	}
}
