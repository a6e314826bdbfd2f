package memory

import (
	"context"
	"sync"
)

// InMemoryStore keeps snapshots in process memory. Snapshots live exactly as long
// as the host process, which matches the tab-lifetime contract for local use.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string][]byte)}
}

func (s *InMemoryStore) Load(_ context.Context, tabID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.snapshots[tabID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, tabID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.snapshots[tabID] = cp
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, tabID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
