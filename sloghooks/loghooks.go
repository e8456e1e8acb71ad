// Package sloghooks is a ready-made Hooks sink that reports cache events
// through log/slog, with sampling for the high-frequency ones.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Options struct {
	// Sampling for hot-path events to avoid floods; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
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

func (h *Hooks) Hit(key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("tagcache.hit", "key", h.redact(key))
}

func (h *Hooks) Miss(key string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("tagcache.miss", "key", h.redact(key))
}

func (h *Hooks) Bypass(reason string) {
	if h.l == nil {
		return
	}
	h.l.Debug("tagcache.bypass", "reason", reason)
}

func (h *Hooks) LookupFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.lookup_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) StoreFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.store_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ResolveFailed(err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.resolve_failed", "err", err)
}

func (h *Hooks) PurgeFailed(tag string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.purge_failed",
		"tag", tag,
		"err", err)
}

func (h *Hooks) BumpFailed(name string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.bump_failed",
		"name", name,
		"err", err)
}
