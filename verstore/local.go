package verstore

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	version  uint64
	deadline time.Time // zero => no expiry
}

// Local keeps version counters in-process. Expiry is enforced at read time;
// an optional sweeper loop prunes counters whose TTL has lapsed so long-dead
// tags do not pin memory.
type Local struct {
	mu       sync.Mutex
	versions map[string]localEntry

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ VersionStore = (*Local)(nil)

// NewLocal creates an in-process version store. sweepInterval <= 0 disables
// the background sweeper.
func NewLocal(sweepInterval time.Duration) *Local {
	s := &Local{versions: make(map[string]localEntry)}
	if sweepInterval > 0 {
		s.ticker = time.NewTicker(sweepInterval)
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

func (s *Local) Version(_ context.Context, name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.versions[name]
	if !ok || s.expired(e) {
		return 1, nil
	}
	return e.version, nil
}

func (s *Local) Bump(_ context.Context, name string, ttl time.Duration) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.versions[name]
	if !ok || s.expired(e) {
		e = localEntry{version: 2}
	} else {
		e.version++
	}
	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	} else {
		e.deadline = time.Time{}
	}
	s.versions[name] = e
	return e.version, nil
}

func (s *Local) expired(e localEntry) bool {
	return !e.deadline.IsZero() && time.Now().After(e.deadline)
}

func (s *Local) sweep() {
	now := time.Now()
	s.mu.Lock()
	for name, e := range s.versions {
		if !e.deadline.IsZero() && now.After(e.deadline) {
			delete(s.versions, name)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}
