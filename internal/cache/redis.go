package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps results in Redis so several service replicas share one cache.
// Values are stored as JSON and expire through Redis' own TTL.
type RedisStore[V any] struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store writing keys under prefix.
func NewRedisStore[V any](rdb redis.UniversalClient, prefix string) *RedisStore[V] {
	return &RedisStore[V]{rdb: rdb, prefix: prefix}
}

// redisKey hashes the memo key, which embeds whole source programs.
func (s *RedisStore[V]) redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return s.prefix + hex.EncodeToString(sum[:])
}

func (s *RedisStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := s.rdb.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get: %w", err)
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("decoding cached value: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cached value: %w", err)
	}
	if err := s.rdb.Set(ctx, s.redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
