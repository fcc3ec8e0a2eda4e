package existence

import (
	"context"
	"sync"
)

// Static is an in-memory Lookup backed by a set of ids.
type Static struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewStatic returns a Static lookup containing ids.
func NewStatic(ids ...string) *Static {
	s := &Static{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Add inserts ids into the set.
func (s *Static) Add(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Remove deletes ids from the set.
func (s *Static) Remove(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Exists implements Lookup.
func (s *Static) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok, nil
}
