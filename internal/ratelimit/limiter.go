package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/importduty/internal/config"
	"go.uber.org/zap"
)

const (
	keyExchangeRefresh = "importduty:ratelimit:exchange-refresh:%s"
	keyBulkRateLock    = "importduty:lock:bulk-rate"
)

// Limiter guards the expensive admin operations: it throttles exchange-rate
// refreshes per actor and serializes bulk re-rates across instances.
type Limiter struct {
	enabled      bool
	bucket       Bucket
	locker       Locker
	refreshRate  float64
	refreshBurst int
	lockTTL      time.Duration
}

func NewLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *Limiter {
	limitCfg := cfg.RateLimit

	l := &Limiter{
		enabled:      limitCfg.Enabled && limitCfg.ExchangeRefreshRate > 0 && limitCfg.ExchangeRefreshBurst > 0,
		refreshRate:  limitCfg.ExchangeRefreshRate,
		refreshBurst: limitCfg.ExchangeRefreshBurst,
		lockTTL:      time.Duration(limitCfg.BulkLockTTLSeconds) * time.Second,
	}
	if l.lockTTL <= 0 {
		l.lockTTL = 2 * time.Minute
	}

	if client != nil {
		l.bucket = NewTokenBucket(client)
		l.locker = NewRedisLocker(client)
	} else {
		l.bucket = NewLocalBucket()
		l.locker = NewLocalLocker()
	}

	log.Named("ratelimit").Info("limiter configured",
		zap.Bool("refresh_throttle", l.enabled),
		zap.Bool("distributed", client != nil),
		zap.Duration("bulk_lock_ttl", l.lockTTL),
	)
	return l
}

// NewLimiterWith builds a Limiter on explicit primitives.
func NewLimiterWith(bucket Bucket, locker Locker, rate float64, burst int, lockTTL time.Duration) *Limiter {
	return &Limiter{
		enabled:      bucket != nil && rate > 0 && burst > 0,
		bucket:       bucket,
		locker:       locker,
		refreshRate:  rate,
		refreshBurst: burst,
		lockTTL:      lockTTL,
	}
}

// AllowExchangeRefresh reports whether actorID may trigger another refresh.
func (l *Limiter) AllowExchangeRefresh(ctx context.Context, actorID string) (*RateLimitResult, error) {
	if l == nil || !l.enabled {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyExchangeRefresh, strings.TrimSpace(actorID)), l.refreshRate, l.refreshBurst)
}

// TryLockBulkRate takes the bulk re-rate lease. ok is false when another
// re-rate holds it.
func (l *Limiter) TryLockBulkRate(ctx context.Context) (string, bool, error) {
	if l == nil || l.locker == nil {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, keyBulkRateLock, l.lockTTL)
}

func (l *Limiter) ReleaseBulkRate(ctx context.Context, token string) error {
	if l == nil || l.locker == nil {
		return nil
	}
	return l.locker.Release(ctx, keyBulkRateLock, token)
}
