package memory

import (
	"context"
	"maps"
	"sync"

	id "vendorkyc/pkg/domain"
	audit "vendorkyc/pkg/platform/audit"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.RecordID][]audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.RecordID][]audit.Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Details = maps.Clone(entry.Details)
	s.entries[entry.RecordID] = append(s.entries[entry.RecordID], entry)
	return nil
}

// ListByRecord returns entries for a record in append order.
func (s *InMemoryStore) ListByRecord(_ context.Context, recordID id.RecordID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, len(s.entries[recordID]))
	copy(out, s.entries[recordID])
	return out, nil
}

// Count returns the total number of entries across all records.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		n += len(e)
	}
	return n
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[id.RecordID][]audit.Entry)
}
