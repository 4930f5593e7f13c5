package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisKeyPrefix namespaces admission state in a shared Redis.
const redisKeyPrefix = "admission:"

// RedisLimiter is the multi-replica Limiter: a sorted set of admission
// timestamps per client, shared by every replica. The member is added
// first and removed again on overflow, so the set never admits more
// than the limit inside a window across replicas. On Redis outage the
// limiter fails open and logs.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisLimit sets the max admissions per window.
func WithRedisLimit(n int) RedisOption {
	return func(r *RedisLimiter) {
		r.limit = n
	}
}

// WithRedisWindow sets the window length.
func WithRedisWindow(d time.Duration) RedisOption {
	return func(r *RedisLimiter) {
		r.window = d
	}
}

// WithRedisClock injects the time source.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisLimiter) {
		r.now = now
	}
}

// WithRedisLogger sets the logger for fail-open events.
func WithRedisLogger(log zerolog.Logger) RedisOption {
	return func(r *RedisLimiter) {
		r.log = log
	}
}

// NewRedisLimiter creates a Redis-backed sliding window limiter.
func NewRedisLimiter(client *redis.Client, opts ...RedisOption) *RedisLimiter {
	r := &RedisLimiter{
		client: client,
		limit:  DefaultLimit,
		window: DefaultWindow,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow admits or rejects one request for key.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	decision, err := r.allow(ctx, key)
	if err != nil {
		r.log.Warn().Err(err).Str("client", key).Msg("admission state unavailable, failing open")
		return Decision{Allowed: true, Remaining: -1, Limit: r.limit, Window: r.window}, nil
	}
	return decision, nil
}

func (r *RedisLimiter) allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	redisKey := redisKeyPrefix + key
	member := uuid.NewString()
	cutoff := now.Add(-r.window).UnixNano()

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("admission: window pipeline: %w", err)
	}

	count := int(card.Val())
	if count <= r.limit {
		return Decision{
			Allowed:   true,
			Remaining: r.limit - count,
			Limit:     r.limit,
			Window:    r.window,
		}, nil
	}

	// Overflow: withdraw our member and report when the oldest one ages
	// out.
	if err := r.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return Decision{}, fmt.Errorf("admission: withdraw member: %w", err)
	}

	retryAfter := r.window
	oldest, err := r.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err == nil && len(oldest) > 0 {
		oldestAt := time.Unix(0, int64(oldest[0].Score))
		retryAfter = oldestAt.Add(r.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: retryAfter,
		Limit:      r.limit,
		Window:     r.window,
	}, nil
}
