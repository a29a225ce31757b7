// ABOUTME: Redis connection used as the embedding cache backend
// ABOUTME: Multi-key reads and pipelined writes with a per-entry TTL
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/redis/go-redis/v9"
)

// Backend stores opaque values by key
type Backend interface {
	// GetMany returns one entry per key; misses are nil
	GetMany(ctx context.Context, keys []string) ([][]byte, error)
	SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
	Close() error
}

// RedisBackend wraps the Redis client
type RedisBackend struct {
	client *redis.Client
}

// ConnectRedis establishes a connection to Redis
func ConnectRedis(ctx context.Context, addr string) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &core.ConnectivityError{Service: "redis", Err: err}
	}

	return &RedisBackend{client: client}, nil
}

func (r *RedisBackend) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading cache: %w", err)
	}

	out := make([][]byte, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

func (r *RedisBackend) SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for key, value := range entries {
		pipe.Set(ctx, key, value, ttl)
	}
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("error writing cache: %w", err)
	}
	var errs []error
	for _, cmd := range cmds {
		if cmd.Err() != nil && !errors.Is(cmd.Err(), redis.Nil) {
			errs = append(errs, cmd.Err())
		}
	}
	return errors.Join(errs...)
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
