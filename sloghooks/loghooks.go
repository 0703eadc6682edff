// Package sloghooks logs tiercache hook events through log/slog.
//
// Hits and misses are not logged; use metrics/prom for those.
package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/unkn0wn-root/tiercache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	SkippedEvery  uint64
	// StoreErrorLimit caps store error lines per second (burst equal to the
	// limit). 0 disables the cap. A failing store fails every call.
	StoreErrorLimit rate.Limit
	// Optional key redactor. Defaults to SHA-256 prefix; user ids are keys.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options
	lim  *rate.Limiter

	selfHealCtr atomic.Uint64
	skippedCtr  atomic.Uint64
	suppressed  atomic.Uint64
}

var _ tiercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	h := &Hooks{l: l, opts: opts}
	if opts.StoreErrorLimit > 0 {
		burst := max(int(opts.StoreErrorLimit), 1)
		h.lim = rate.NewLimiter(opts.StoreErrorLimit, burst)
	}
	return h
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

// Suppressed reports store error lines dropped by the rate limit.
func (h *Hooks) Suppressed() uint64 { return h.suppressed.Load() }

func (h *Hooks) Hit(string, tiercache.Level) {}
func (h *Hooks) Miss(string)                 {}

func (h *Hooks) SelfHeal(ns, key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("tiercache.self_heal",
		"ns", ns,
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) StoreError(ns, op string, err error) {
	if h.l == nil {
		return
	}
	if h.lim != nil && !h.lim.Allow() {
		h.suppressed.Add(1)
		return
	}
	lvl := slog.LevelWarn
	if op == "clear" {
		lvl = slog.LevelError
	}
	h.l.Log(context.Background(), lvl, "tiercache.store_error",
		"ns", ns,
		"op", op,
		"err", err)
}

func (h *Hooks) PopulateSkipped(ns, key string) {
	if h.l == nil || !sample(h.opts.SkippedEvery, &h.skippedCtr) {
		return
	}
	h.l.Debug("tiercache.populate_skipped",
		"ns", ns,
		"key", h.redact(key))
}

func (h *Hooks) GenError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tiercache.gen_error",
		"op", op,
		"err", err)
}

func (h *Hooks) RemoteInvalidation(ns string, dropped int, full bool) {
	if h.l == nil {
		return
	}
	h.l.Info("tiercache.remote_invalidation",
		"ns", ns,
		"dropped", dropped,
		"full", full)
}
