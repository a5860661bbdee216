package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genepilepsy-guide/internal/domain"
)

// KeyPrefix namespaces lookup keys.
const KeyPrefix = "genepi:lookup:"

// RedisStore keeps lookups in Redis as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Save stores lookup and returns its id, assigning one when empty.
func (r *RedisStore) Save(ctx context.Context, lookup domain.Lookup) (string, error) {
	lookup.ID = newID(lookup)
	data, err := json.Marshal(lookup)
	if err != nil {
		return "", fmt.Errorf("failed to marshal lookup: %w", err)
	}
	if err := r.client.Set(ctx, KeyPrefix+lookup.ID, data, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to save lookup: %w", err)
	}
	return lookup.ID, nil
}

// Get returns the lookup or domain.ErrSessionNotFound. A corrupted entry is removed and
// reported as missing.
func (r *RedisStore) Get(ctx context.Context, id string) (domain.Lookup, error) {
	key := KeyPrefix + id
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Lookup{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Lookup{}, fmt.Errorf("failed to get lookup: %w", err)
	}

	var lookup domain.Lookup
	if err := json.Unmarshal(data, &lookup); err != nil {
		r.client.Del(ctx, key)
		return domain.Lookup{}, domain.ErrSessionNotFound
	}
	return lookup, nil
}

// Delete removes the lookup.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, KeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete lookup: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
