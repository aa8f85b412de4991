// Package memory implements audit.Store for unit tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleetgate/internal/audit"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]audit.Record
	records []audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]audit.Record)}
}

// Append stores the record unless its AuditID was already written. The
// first write wins; a duplicate never alters the stored content.
func (s *InMemoryStore) Append(_ context.Context, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[record.AuditID]; exists {
		return nil
	}
	s.byID[record.AuditID] = record
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, query audit.Query) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Record
	for _, r := range s.records {
		if query.SubjectID != "" && r.SubjectID != query.SubjectID {
			continue
		}
		if query.Action != "" && r.Action != query.Action {
			continue
		}
		if query.ResourceID != "" && r.ResourceID != query.ResourceID {
			continue
		}
		if !query.StartTime.IsZero() && r.Timestamp.Before(query.StartTime) {
			continue
		}
		matched = append(matched, r)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, nil
}

func (s *InMemoryStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []audit.Record
	var purged int64
	for _, r := range s.records {
		if r.ExpiresAt.After(now) {
			kept = append(kept, r)
			continue
		}
		delete(s.byID, r.AuditID)
		purged++
	}
	s.records = kept
	return purged, nil
}

// Clear resets the store between tests.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]audit.Record)
	s.records = nil
}
