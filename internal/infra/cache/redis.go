package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Redis stores JSON-encoded values in Redis under a key prefix.
type Redis[T any] struct {
	client     rueidis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedisClient connects to addr. The caller owns the returned client.
func NewRedisClient(addr string) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedis wraps an existing client.
func NewRedis[T any](client rueidis.Client, prefix string, defaultTTL time.Duration) *Redis[T] {
	return &Redis[T]{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

func (r *Redis[T]) key(k string) string { return r.prefix + k }

func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := r.client.Do(ctx, r.client.B().Get().Key(r.key(key)).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	cmd := r.client.B().Set().Key(r.key(key)).Value(string(raw)).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(r.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (r *Redis[T]) Ping(ctx context.Context) error {
	return r.client.Do(ctx, r.client.B().Ping().Build()).Error()
}
