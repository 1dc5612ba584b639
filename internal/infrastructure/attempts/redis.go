package attempts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	redisKeyPrefix = "mfa:attempts:"

	connectAttempts = 6
	connectBackoff  = 250 * time.Millisecond
	connectMaxWait  = 5 * time.Second
)

// NewRedisClient connects to addr and waits for the server to answer a ping
func NewRedisClient(ctx context.Context, addr, password string, db int, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	backoff := retry.WithCappedDuration(connectMaxWait, retry.NewFibonacci(connectBackoff))
	backoff = retry.WithMaxRetries(connectAttempts, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis not ready, retrying", zap.String("addr", addr), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("attempts: connecting to redis: %w", err)
	}

	return client, nil
}

// RedisLimiter counts attempts per key in fixed windows shared by every
// service instance.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter allows max attempts per key in each window
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: redisKeyPrefix,
		max:    int64(max),
		window: window,
	}
}

// Allow increments the counter for key and reports whether it is still within
// the limit. The window starts with the first attempt.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	fk := l.prefix + key

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fk)
		pipe.ExpireNX(ctx, fk, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("attempts: redis pipeline: %w", err)
	}

	return incr.Val() <= l.max, nil
}
