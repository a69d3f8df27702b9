package repositories

import (
	"time"

	"camsignal/internal/core/ports"
	"camsignal/internal/infrastructure/repositories/memory"
	redisrepo "camsignal/internal/infrastructure/repositories/redis"
	"camsignal/pkg/config"

	"go.uber.org/zap"
)

// ThrottleParams are the effective lockout thresholds, after the
// settings table has had a chance to override the config file.
type ThrottleParams struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// NewLoginThrottle selects the Redis-backed throttle when Redis is
// configured and reachable, falling back to the in-memory one otherwise.
func NewLoginThrottle(cfg *config.Config, params ThrottleParams, logger *zap.SugaredLogger) ports.LoginThrottle {
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, logger,
		)
		if err == nil {
			return redisrepo.NewRedisLoginThrottle(client, params.MaxAttempts, params.Window, params.Lockout)
		}
		logger.Warnw("redis unavailable, using in-memory login throttle", "error", err)
	}
	return memory.NewMemoryLoginThrottle(params.MaxAttempts, params.Window, params.Lockout)
}
