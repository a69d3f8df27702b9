package redis

import (
	"context"
	"fmt"
	"time"

	"camsignal/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisLoginThrottle counts recent failed logins per username/IP pair
// in Redis so the lockout survives a signaling-server restart.
type RedisLoginThrottle struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
}

func NewRedisLoginThrottle(client *redis.Client, maxAttempts int, window, lockout time.Duration) ports.LoginThrottle {
	return &RedisLoginThrottle{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		lockout:     lockout,
	}
}

func (t *RedisLoginThrottle) key(username, ip string) string {
	return fmt.Sprintf("camsignal:login_failures:%s:%s", username, ip)
}

func (t *RedisLoginThrottle) lockKey(username, ip string) string {
	return fmt.Sprintf("camsignal:login_lock:%s:%s", username, ip)
}

func (t *RedisLoginThrottle) Allow(ctx context.Context, username, ip string) (bool, error) {
	locked, err := t.client.Exists(ctx, t.lockKey(username, ip)).Result()
	if err != nil {
		return true, err
	}
	return locked == 0, nil
}

func (t *RedisLoginThrottle) RecordFailure(ctx context.Context, username, ip string) error {
	key := t.key(username, ip)

	pipe := t.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if count.Val() >= int64(t.maxAttempts) {
		return t.client.Set(ctx, t.lockKey(username, ip), "1", t.lockout).Err()
	}
	return nil
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, username, ip string) error {
	return t.client.Del(ctx, t.key(username, ip), t.lockKey(username, ip)).Err()
}

func (t *RedisLoginThrottle) Window() time.Duration {
	return t.window
}
