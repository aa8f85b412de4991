package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore implements ratelimit.CounterStore for unit tests and local
// development. Not for production: counters do not survive across
// invocations.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count     int64
	expiresAt time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{counters: make(map[string]*counter)}
}

func (s *InMemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok || !c.expiresAt.After(now) {
		c = &counter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Clear resets all counters between tests.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]*counter)
}
