// Package memory provides an in-process map store with per-entry TTLs.
// Intended for tests and single-process deployments that do not need
// eviction pressure handling; use the ristretto or bigcache stores when
// memory bounds matter.
package memory

import (
	"context"
	"sync"
	"time"

	st "github.com/unkn0wn-root/tagcache/store"
)

type entry struct {
	value []byte
	exp   time.Time // zero => no expiry
}

type Memory struct {
	mu sync.RWMutex
	m  map[string]entry

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ st.Store = (*Memory)(nil)

// New creates a memory store. When cleanupInterval > 0 a background sweeper
// prunes expired entries; expiry is always enforced at read time regardless.
func New(cleanupInterval time.Duration) *Memory {
	s := &Memory{m: make(map[string]entry)}
	if cleanupInterval > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.sweep()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		s.mu.Lock()
		delete(s.m, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = entry{value: value, exp: exp}
	s.mu.Unlock()
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	e, ok := s.m[key]
	delete(s.m, key)
	s.mu.Unlock()
	if ok && !e.exp.IsZero() && time.Now().After(e.exp) {
		// Still in the map but logically gone; removing it is a no-op.
		return false, nil
	}
	return ok, nil
}

func (s *Memory) sweep() {
	now := time.Now()
	s.mu.Lock()
	for k, e := range s.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(s.m, k)
		}
	}
	s.mu.Unlock()
}

func (s *Memory) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}

// Len reports the number of live entries. Test helper.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
