// Package prom implements tiercache.Hooks with Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tiercache"
)

// Hooks counts cache events. One Hooks can serve several caches; series are
// labelled by namespace.
type Hooks struct {
	Hits                *prometheus.CounterVec
	Misses              *prometheus.CounterVec
	SelfHeals           *prometheus.CounterVec
	StoreErrors         *prometheus.CounterVec
	PopulateSkips       *prometheus.CounterVec
	GenErrors           *prometheus.CounterVec
	RemoteInvalidations *prometheus.CounterVec
	RemoteDropped       *prometheus.CounterVec
}

var _ tiercache.Hooks = (*Hooks)(nil)

// NewHooks creates and registers all metrics with the provided registry.
func NewHooks(reg prometheus.Registerer) *Hooks {
	h := &Hooks{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_hits_total",
			Help: "Cache hits by tier",
		}, []string{"ns", "level"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_misses_total",
			Help: "Reads that found nothing in either tier",
		}, []string{"ns"}),
		SelfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_self_heals_total",
			Help: "Entries deleted on read because they were unusable",
		}, []string{"ns", "reason"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_store_errors_total",
			Help: "Failed store calls by operation",
		}, []string{"ns", "op"}),
		PopulateSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_populate_skipped_total",
			Help: "Values not mirrored into memory",
		}, []string{"ns"}),
		GenErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_gen_errors_total",
			Help: "Generation store failures",
		}, []string{"op"}),
		RemoteInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_remote_invalidations_total",
			Help: "Sync passes that dropped memory entries",
		}, []string{"ns", "scope"}),
		RemoteDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_remote_dropped_entries_total",
			Help: "Memory entries dropped by the sync loop",
		}, []string{"ns"}),
	}
	reg.MustRegister(h.Hits, h.Misses, h.SelfHeals, h.StoreErrors,
		h.PopulateSkips, h.GenErrors, h.RemoteInvalidations, h.RemoteDropped)
	return h
}

func (h *Hooks) Hit(ns string, l tiercache.Level) { h.Hits.WithLabelValues(ns, string(l)).Inc() }
func (h *Hooks) Miss(ns string)                   { h.Misses.WithLabelValues(ns).Inc() }

// SelfHeal does not label by key; keys are unbounded.
func (h *Hooks) SelfHeal(ns, _, reason string) { h.SelfHeals.WithLabelValues(ns, reason).Inc() }

func (h *Hooks) StoreError(ns, op string, _ error) { h.StoreErrors.WithLabelValues(ns, op).Inc() }
func (h *Hooks) PopulateSkipped(ns, _ string)      { h.PopulateSkips.WithLabelValues(ns).Inc() }
func (h *Hooks) GenError(op string, _ error)       { h.GenErrors.WithLabelValues(op).Inc() }

func (h *Hooks) RemoteInvalidation(ns string, dropped int, full bool) {
	scope := "keys"
	if full {
		scope = "full"
	}
	h.RemoteInvalidations.WithLabelValues(ns, scope).Inc()
	h.RemoteDropped.WithLabelValues(ns).Add(float64(dropped))
}
