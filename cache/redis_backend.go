package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendMiss is returned by Backend.Get when key is absent.
var ErrBackendMiss = errors.New("cache: backend miss")

// Backend is an out-of-process cache tier a deployment may opt into so
// multiple engine instances share query-cache state. The in-process
// Cache[V] above remains the default; Backend composes with it rather
// than replacing it.
type Backend interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// RedisBackend implements Backend on Redis (or a Valkey/DragonflyDB
// drop-in), adapted from the cache-operation slice of this codebase's
// Redis cache repository: the same "cache:" key prefix and JSON
// marshaling, narrowed to the Backend interface this package needs.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend parses url and pings the server with a 5s timeout so
// misconfiguration fails fast at construction.
func NewRedisBackend(url string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to redis: %w", err)
	}

	return &RedisBackend{client: client}, nil
}

// Set marshals value as JSON and stores it under "cache:"+key with ttl.
func (r *RedisBackend) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value for key %s: %w", key, err)
	}
	return r.client.Set(ctx, "cache:"+key, data, ttl).Err()
}

// Get unmarshals the cached JSON for key into dest, or returns
// ErrBackendMiss if absent.
func (r *RedisBackend) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, "cache:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrBackendMiss
	}
	if err != nil {
		return fmt.Errorf("cache: redis get failed for key %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

// Delete removes the cached value for key, if any.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, "cache:"+key).Err()
}

// Close releases the underlying Redis connection.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
