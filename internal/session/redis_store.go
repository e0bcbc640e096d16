package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Storage on Redis. Keys are scoped to one tab and
// always carry a TTL so nothing survives a closed tab for long. The server
// must run without RDB or AOF persistence; call Purge when the tab closes.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// defaultTTL bounds values stored without an explicit expiry.
const defaultTTL = 24 * time.Hour

// NewRedisStorage connects to redisURL and scopes keys to tabID.
func NewRedisStorage(redisURL, tabID string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStorageWithClient(client, tabID), nil
}

// NewRedisStorageWithClient wraps an existing client. Tests use it with
// miniredis.
func NewRedisStorageWithClient(client *redis.Client, tabID string) *RedisStorage {
	return &RedisStorage{
		client: client,
		prefix: "tab:" + tabID + ":",
	}
}

func (s *RedisStorage) key(name string) string {
	return s.prefix + name
}

// Get returns the value under key for this tab. A missing or expired key is
// reported as absent, not as an error.
func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key for this tab. A non-positive ttl falls back to
// defaultTTL so no key is ever written without an expiry.
func (s *RedisStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key for this tab. Deleting a missing key is not an error.
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Purge deletes every key of this tab. Other tabs are left alone.
func (s *RedisStorage) Purge(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan tab keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("purge tab keys: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Ping checks that Redis is reachable.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
