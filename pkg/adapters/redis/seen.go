package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// SeenSet implements ports.SeenSet with one Redis set per batch.
// SADD is atomic, so replicas generating the same batch share one namespace.
type SeenSet struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the SeenSet.
type Option func(*SeenSet)

// WithTTL sets the expiration of batch namespaces.
func WithTTL(ttl time.Duration) Option {
	return func(s *SeenSet) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for batch namespaces.
func WithPrefix(prefix string) Option {
	return func(s *SeenSet) {
		s.prefix = prefix
	}
}

// New creates a new Redis seen-set with options.
func New(address, password string, db int, opts ...Option) *SeenSet {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis seen-set from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *SeenSet {
	s := &SeenSet{
		client: client,
		prefix: "strata:seen:",
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying connection, e.g. to share it with a Locker.
func (s *SeenSet) Client() *backend.Client {
	return s.client
}

func (s *SeenSet) key(batchID string) string {
	return s.prefix + batchID
}

// Add claims key with SADD.
func (s *SeenSet) Add(ctx context.Context, batchID string, key domain.ComboKey) (bool, error) {
	pipe := s.client.Pipeline()
	added := pipe.SAdd(ctx, s.key(batchID), string(key))
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(batchID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to claim combo key: %w", err)
	}
	return added.Val() == 1, nil
}

// Len returns SCARD of the batch set.
func (s *SeenSet) Len(ctx context.Context, batchID string) (int, error) {
	n, err := s.client.SCard(ctx, s.key(batchID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count combo keys: %w", err)
	}
	return int(n), nil
}

// Clear deletes the batch set.
func (s *SeenSet) Clear(ctx context.Context, batchID string) error {
	if err := s.client.Del(ctx, s.key(batchID)).Err(); err != nil {
		return fmt.Errorf("failed to clear combo keys: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *SeenSet) Close() error {
	return s.client.Close()
}
