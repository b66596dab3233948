package audit

import (
	"context"
	"sync"
)

// Store persists audit events. It is append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// MemoryStore keeps events in process, indexed by claim.
type MemoryStore struct {
	mu      sync.RWMutex
	events  []Event
	byClaim map[uint64][]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byClaim: make(map[uint64][]int)}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if event.ClaimID != 0 {
		s.byClaim[event.ClaimID] = append(s.byClaim[event.ClaimID], len(s.events)-1)
	}
	return nil
}

// ListByClaim returns the events recorded for a claim in append order.
func (s *MemoryStore) ListByClaim(_ context.Context, claimID uint64) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byClaim[claimID]
	out := make([]Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.events[i])
	}
	return out, nil
}

// ListAll returns every recorded event in append order.
func (s *MemoryStore) ListAll(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...), nil
}
