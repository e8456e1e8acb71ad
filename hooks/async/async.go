// Package asynchook decouples hook sinks from the serving path. Events are
// queued and replayed by worker goroutines; when the queue is full, events
// are dropped rather than blocking a request.
//
// usage:
//
//	raw := myHooks{}                     // your tagcache.Hooks sink
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	reg, _ := tagcache.NewRegistry(cfg, tagcache.RegistryOptions{Hooks: hooks})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/tagcache"
)

type Hooks struct {
	inner tagcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(inner tagcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) Hit(k string)    { h.try(func() { h.inner.Hit(k) }) }
func (h *Hooks) Miss(k string)   { h.try(func() { h.inner.Miss(k) }) }
func (h *Hooks) Bypass(r string) { h.try(func() { h.inner.Bypass(r) }) }
func (h *Hooks) LookupFailed(k string, err error) {
	h.try(func() { h.inner.LookupFailed(k, err) })
}
func (h *Hooks) StoreFailed(k string, err error) {
	h.try(func() { h.inner.StoreFailed(k, err) })
}
func (h *Hooks) ResolveFailed(err error) { h.try(func() { h.inner.ResolveFailed(err) }) }
func (h *Hooks) PurgeFailed(t string, err error) {
	h.try(func() { h.inner.PurgeFailed(t, err) })
}
func (h *Hooks) BumpFailed(n string, err error) {
	h.try(func() { h.inner.BumpFailed(n, err) })
}
