package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
)

// Store implements ports.ArtifactStore in memory.
// Safe for concurrent use.
type Store struct {
	images   map[int64][]byte
	metadata map[int64]*domain.TokenMetadata
	mu       sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		images:   make(map[int64][]byte),
		metadata: make(map[int64]*domain.TokenMetadata),
	}
}

// SaveImage keeps a copy of the raster and returns its file name as reference.
func (s *Store) SaveImage(ctx context.Context, tokenID int64, ext string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[tokenID] = slices.Clone(data)
	return fmt.Sprintf("%d%s", tokenID, ext), nil
}

// SaveMetadata persists the record in memory.
func (s *Store) SaveMetadata(ctx context.Context, md *domain.TokenMetadata) error {
	// Copy to ensure isolation, similar to serialization
	copied := *md
	copied.Attributes = slices.Clone(md.Attributes)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[md.TokenID] = &copied
	return nil
}

// LoadMetadata retrieves a record from memory.
func (s *Store) LoadMetadata(ctx context.Context, tokenID int64) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md, ok := s.metadata[tokenID]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}

	// Copy on read so caller can't mutate store state directly by pointer
	ret := *md
	ret.Attributes = slices.Clone(md.Attributes)
	return &ret, nil
}

// Image returns the stored raster of a token.
func (s *Store) Image(tokenID int64) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.images[tokenID]
	return data, ok
}

// List returns stored token ids in ascending order.
func (s *Store) List(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.metadata))
	for id := range s.metadata {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Reset drops every artifact.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.images)
	clear(s.metadata)
	return nil
}
