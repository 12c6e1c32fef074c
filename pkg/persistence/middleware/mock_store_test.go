package middleware_test

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	images map[int64][]byte
	data   map[int64]*domain.TokenMetadata
}

func NewMockStore() *MockStore {
	return &MockStore{
		images: make(map[int64][]byte),
		data:   make(map[int64]*domain.TokenMetadata),
	}
}

func (s *MockStore) SaveImage(ctx context.Context, tokenID int64, ext string, data []byte) (string, error) {
	s.images[tokenID] = data
	return "file" + ext, nil
}

func (s *MockStore) SaveMetadata(ctx context.Context, md *domain.TokenMetadata) error {
	s.data[md.TokenID] = md
	return nil
}

func (s *MockStore) LoadMetadata(ctx context.Context, tokenID int64) (*domain.TokenMetadata, error) {
	md, ok := s.data[tokenID]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return md, nil
}

func (s *MockStore) List(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MockStore) Reset(ctx context.Context) error {
	clear(s.images)
	clear(s.data)
	return nil
}

var _ ports.ArtifactStore = (*MockStore)(nil)
