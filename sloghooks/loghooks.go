// Package sloghooks logs tiercache hook events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/internal/keys"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	EvictEvery    uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
	// LogSweeps logs every sweep, including empty ones.
	LogSweeps bool
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	evictCtr    atomic.Uint64
}

var _ tiercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return keys.Redact(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(t tiercache.Tier, storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("tiercache.self_heal",
		"tier", t.String(),
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) Evicted(ns string, count int, freed int64) {
	if h.l == nil || !sample(h.opts.EvictEvery, &h.evictCtr) {
		return
	}
	h.l.Info("tiercache.evicted",
		"ns", ns,
		"count", count,
		"freed_bytes", freed)
}

func (h *Hooks) TierError(t tiercache.Tier, op, storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tiercache.tier_error",
		"tier", t.String(),
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) DurableFull(ns string, purged int) {
	if h.l == nil {
		return
	}
	h.l.Warn("tiercache.durable_full",
		"ns", ns,
		"purged", purged)
}

func (h *Hooks) Swept(ns string, mem, dur int) {
	if h.l == nil || (!h.opts.LogSweeps && mem == 0 && dur == 0) {
		return
	}
	h.l.Debug("tiercache.swept",
		"ns", ns,
		"memory_purged", mem,
		"durable_purged", dur)
}
