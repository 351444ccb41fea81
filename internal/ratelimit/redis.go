package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter enforces budgets fleet-wide through a shared counter
// store. Each fixed window gets its own key, keyed by user, class, and
// window start, incremented atomically and expired by Redis.
type RedisLimiter struct {
	client *redis.Client
	limits Limits
	now    func() time.Time
}

// NewRedisLimiter creates a limiter backed by the given Redis client.
func NewRedisLimiter(client *redis.Client, limits Limits) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limits: limits,
		now:    time.Now,
	}
}

// Check atomically increments the counter for the current window bucket.
// The bucket key embeds the window start, so a new window is simply a
// new key; old buckets expire on their own.
func (r *RedisLimiter) Check(ctx context.Context, userID string, class Class) (Decision, error) {
	limit := r.limits.forClass(class)
	now := r.now()

	windowStart := now.Truncate(limit.Window)
	windowEnd := windowStart.Add(limit.Window)
	key := fmt.Sprintf("ratelimit:%s:%s:%d", userID, class, windowStart.Unix())

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		// First hit in this bucket owns setting the TTL. A small grace
		// keeps the key alive through clock skew between instances.
		if err := r.client.Expire(ctx, key, limit.Window+10*time.Second).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to expire rate limit counter: %w", err)
		}
	}

	if count > int64(limit.Max) {
		return Decision{Allowed: false, RetryAfter: windowEnd.Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}
