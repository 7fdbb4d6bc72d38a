package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	client  *redis.Client
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedis connects to Redis and returns a shared limiter. Redis errors
// during Allow fail open: a broken cache must not lock users out of sign-in.
// The server needs Redis 7 or later for EXPIRE NX.
func NewRedis(ctx context.Context, addr, password string, db int, logger *slog.Logger) (Limiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: pinging redis at %s: %w", addr, err)
	}
	return newRedis(client, logger), nil
}

func newRedis(client *redis.Client, logger *slog.Logger) *redisLimiter {
	return &redisLimiter{
		client:  client,
		logger:  logger,
		prefix:  "vegfuel:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	// One MULTI/EXEC: the counter never exists without an expiry, and
	// EXPIRE NX keeps later hits from extending the window.
	redisKey := l.prefix + key
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, window)
		ttl = pipe.TTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		l.logError("incr", err)
		return Decision{Allowed: true}
	}

	count := incr.Val()
	remaining := ttl.Val()
	if remaining <= 0 || remaining > window {
		remaining = window
	}
	return Decision{
		Allowed:   int(count) <= limit,
		Count:     int(count),
		WindowEnd: time.Now().Add(remaining),
	}
}

func (l *redisLimiter) Close() {
	if l.client != nil {
		_ = l.client.Close()
	}
}

func (l *redisLimiter) logError(op string, err error) {
	if l.logger == nil {
		return
	}
	l.logger.Error("redis rate limiter error", "op", op, "error", err)
}
