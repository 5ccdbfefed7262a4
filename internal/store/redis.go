package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "noitu"

// RedisKV stores each bucket as one Redis hash: <prefix>:<bucket> → {key: json}.
type RedisKV struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisKV(rdb *redis.Client, prefix string) *RedisKV {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisKV{rdb: rdb, prefix: prefix}
}

// OpenRedisKV dials redisURL (redis://[:pass@]host:port/db) and verifies it with PING.
func OpenRedisKV(ctx context.Context, redisURL, prefix string) (*RedisKV, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisKV(rdb, prefix), nil
}

func (s *RedisKV) hashKey(bucket string) string { return s.prefix + ":" + strings.TrimSpace(bucket) }

func (s *RedisKV) Get(ctx context.Context, bucket, key string, out any) (bool, error) {
	if !validName(bucket) || !validKey(key) {
		return false, ErrInvalidName
	}
	raw, err := s.rdb.HGet(ctx, s.hashKey(bucket), key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (s *RedisKV) Put(ctx context.Context, bucket, key string, v any) error {
	if !validName(bucket) || !validKey(key) {
		return ErrInvalidName
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.hashKey(bucket), key, raw).Err()
}

func (s *RedisKV) Delete(ctx context.Context, bucket, key string) error {
	if !validName(bucket) || !validKey(key) {
		return ErrInvalidName
	}
	return s.rdb.HDel(ctx, s.hashKey(bucket), key).Err()
}

func (s *RedisKV) Keys(ctx context.Context, bucket string) ([]string, error) {
	if !validName(bucket) {
		return nil, ErrInvalidName
	}
	keys, err := s.rdb.HKeys(ctx, s.hashKey(bucket)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisKV) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// ParseRedisURL accepts redis:// and rediss:// URLs; rediss enables TLS.
func ParseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}
