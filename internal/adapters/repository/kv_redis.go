package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-redis/redis/v8"

	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/ports"
)

// RedisKVStore keeps slots as plain string keys under a namespace prefix.
type RedisKVStore struct {
	client    *redis.Client
	namespace string
	closed    atomic.Bool
}

// NewRedisKVStore connects to Redis and verifies the connection.
func NewRedisKVStore(ctx context.Context, cfg config.RedisConfig, namespace string) (*RedisKVStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisKVStoreFromClient(client, namespace), nil
}

// NewRedisKVStoreFromClient wraps an existing client.
func NewRedisKVStoreFromClient(client *redis.Client, namespace string) *RedisKVStore {
	return &RedisKVStore{client: client, namespace: namespace}
}

func (s *RedisKVStore) key(k string) string {
	return s.namespace + k
}

func (s *RedisKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ports.ErrStoreClosed
	}
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisKVStore) Set(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return ports.ErrStoreClosed
	}
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisKVStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ports.ErrStoreClosed
	}
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, ports.ErrStoreClosed
	}

	pattern := escapeGlob(s.key(prefix)) + "*"
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", prefix, err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.namespace))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Strings(keys)
	return dedupe(keys), nil
}

// Ping checks the connection.
func (s *RedisKVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisKVStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SCAN may return a key more than once.
func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, k := range sorted {
		if i > 0 && k == sorted[i-1] {
			continue
		}
		out = append(out, k)
	}
	return out
}
