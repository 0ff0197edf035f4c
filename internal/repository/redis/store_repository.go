package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

// DefaultStoreKey is the namespaced key holding the encoded queue
const DefaultStoreKey = "txqueue:transactions"

type storeRepository struct {
	client *redis.Client
	key    string
}

var _ domain.QueueStore = (*storeRepository)(nil)

// NewStoreRepository creates a queue store backed by a single Redis string key
func NewStoreRepository(client *redis.Client, key string) *storeRepository {
	if key == "" {
		key = DefaultStoreKey
	}
	return &storeRepository{client: client, key: key}
}

// Load returns the stored document, or nil when the key does not exist
func (r *storeRepository) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		logger.Debug("Queue store is empty", logger.String("key", r.key))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue store %s: %w", r.key, err)
	}
	return data, nil
}

// Save overwrites the stored document; the key never expires
func (r *storeRepository) Save(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write queue store %s: %w", r.key, err)
	}
	return nil
}

// Ping checks the Redis connection, used by readiness probes
func (r *storeRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
