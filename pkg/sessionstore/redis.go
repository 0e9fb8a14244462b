package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL bounds how long an abandoned session's keys live.
const DefaultSessionTTL = 24 * time.Hour

// RedisStorage namespaces keys per session so several clients can share one
// Redis without seeing each other's caches.
type RedisStorage struct {
	client    *redis.Client
	sessionID string
	ttl       time.Duration
}

func NewRedisStorage(client *redis.Client, sessionID string, ttl time.Duration) *RedisStorage {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStorage{client: client, sessionID: sessionID, ttl: ttl}
}

func (r *RedisStorage) getKey(key string) string {
	return fmt.Sprintf("session:%s:%s", r.sessionID, key)
}

func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.getKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.getKey(key), value, r.ttl).Err()
}

func (r *RedisStorage) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.getKey(key)).Err()
}
