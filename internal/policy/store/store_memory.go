package store

import (
	"context"
	"sync"
	"time"

	"fleetgate/internal/policy"
)

// InMemoryStore implements policy.DecisionStore for unit tests and local
// development. Not for production: it does not survive across invocations.
type InMemoryStore struct {
	mu        sync.RWMutex
	decisions map[string]*policy.Decision
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{decisions: make(map[string]*policy.Decision)}
}

func (s *InMemoryStore) Get(_ context.Context, fingerprint string) (*policy.Decision, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	decision, ok := s.decisions[fingerprint]
	if !ok || decision.Expired(time.Now()) {
		return nil, false, nil
	}
	copied := *decision
	return &copied, true, nil
}

func (s *InMemoryStore) Put(_ context.Context, decision *policy.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decisions[decision.TokenFingerprint]; exists {
		return nil
	}
	copied := *decision
	s.decisions[decision.TokenFingerprint] = &copied
	return nil
}

// Clear resets the store between tests.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = make(map[string]*policy.Decision)
}
