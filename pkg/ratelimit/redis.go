package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter shares counters across processes. INCR is atomic in Redis;
// the expiry is set in the same MULTI block.
type RedisCounter struct {
	client redis.UniversalClient
}

var _ Counter = (*RedisCounter)(nil)

var markScript = redis.NewScript(`
local stored = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) > stored then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
end
return 1
`)

func NewRedisCounter(client redis.UniversalClient) (*RedisCounter, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client required")
	}
	return &RedisCounter{client: client}, nil
}

func (r *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	return incr.Val(), nil
}

func (r *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ratelimit: redis get: %w", err)
	}
	return n, nil
}

func (r *RedisCounter) Decr(ctx context.Context, key string) error {
	if err := r.client.Decr(ctx, key).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis decr: %w", err)
	}
	return nil
}

func (r *RedisCounter) Mark(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if err := markScript.Run(ctx, r.client, []string{key}, value, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis mark: %w", err)
	}
	return nil
}
