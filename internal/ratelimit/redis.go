package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "thumbnailer:ratelimit:"

// Redis is a fixed-window limiter backed by a shared Redis instance, for
// deployments running more than one API process.
type Redis struct {
	client *redis.Client
	limit  int
	per    time.Duration
}

// NewRedis builds a limiter allowing limit requests per window per owner.
func NewRedis(client *redis.Client, limit int, per time.Duration) *Redis {
	return &Redis{client: client, limit: limit, per: per}
}

// Allow implements Limiter. INCR and the window expiry run in one pipeline so
// concurrent requests from the same owner observe a consistent count.
func (r *Redis) Allow(ctx context.Context, ownerID string) (Result, error) {
	key := redisKeyPrefix + ownerID

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX keeps the original window start; only the first request in a fresh
	// window arms the expiry.
	pipe.ExpireNX(ctx, key, r.per)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis pipeline: %w", err)
	}

	count := int(incr.Val())
	resetAt := time.Now().Add(r.per)
	if d := ttl.Val(); d > 0 {
		resetAt = time.Now().Add(d)
	}
	if count > r.limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Result{Allowed: true, Remaining: r.limit - count, ResetAt: resetAt}, nil
}

var _ Limiter = (*Redis)(nil)
