package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
)

var _ repository.RateLimitStore = (*redisRateLimit)(nil)

const rateKeyPrefix = "codebasse:ratelimit:"

type redisRateLimit struct {
	client goredis.Cmdable
	now    func() time.Time
}

// NewRedisRateLimitStore creates a fixed-window limiter shared by every
// server instance using the same Redis.
func NewRedisRateLimitStore(client goredis.Cmdable) repository.RateLimitStore {
	return &redisRateLimit{client: client, now: time.Now}
}

// Allow counts the request in the current window with INCR and sets the
// window's expiry on first use.
func (r *redisRateLimit) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucket := r.now().UnixNano() / int64(window)
	k := rateKeyPrefix + key + ":" + strconv.FormatInt(bucket, 10)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}
