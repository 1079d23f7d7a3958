package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const apiKeyPrefix = "api:"

// RedisBytesCache backs the API response cache with the shared Redis client,
// so cached reads survive restarts and are shared across replicas.
type RedisBytesCache struct {
	cli *redis.Client
}

// NewRedisBytesCache wraps an already-connected client; it never dials.
func NewRedisBytesCache(cli *redis.Client) *RedisBytesCache {
	return &RedisBytesCache{cli: cli}
}

func (r *RedisBytesCache) GetBytes(key string) ([]byte, bool, error) {
	b, err := r.cli.Get(context.Background(), apiKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisBytesCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	return r.cli.Set(context.Background(), apiKeyPrefix+key, value, ttl).Err()
}
