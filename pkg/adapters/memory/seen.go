package memory

import (
	"context"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
)

// SeenSet implements ports.SeenSet with a mutex guarded map per batch.
type SeenSet struct {
	mu   sync.Mutex
	sets map[string]map[domain.ComboKey]struct{}
}

// NewSeenSet creates an empty SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{sets: make(map[string]map[domain.ComboKey]struct{})}
}

// Add inserts key if absent.
func (s *SeenSet) Add(ctx context.Context, batchID string, key domain.ComboKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[batchID]
	if !ok {
		set = make(map[domain.ComboKey]struct{})
		s.sets[batchID] = set
	}
	if _, dup := set[key]; dup {
		return false, nil
	}
	set[key] = struct{}{}
	return true, nil
}

// Len returns the number of keys claimed in a batch.
func (s *SeenSet) Len(ctx context.Context, batchID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets[batchID]), nil
}

// Clear drops the batch namespace.
func (s *SeenSet) Clear(ctx context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, batchID)
	return nil
}
