// Package ratelimit implements a fixed-window request limiter backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultLimit  = 60
	DefaultWindow = 60 * time.Second
)

// Limiter counts calls per key in fixed windows. Counters live in
// rate:<key>:<window index> and expire with their window.
type Limiter struct {
	rdb    *goredis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewLimiter(rdb *goredis.Client, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window < time.Second {
		window = DefaultWindow
	}
	return &Limiter{
		rdb:    rdb,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Count      int64
	Limit      int64
	ResetAfter time.Duration
}

// Allow records one call for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	secs := int64(l.window / time.Second)
	index := now.Unix() / secs
	bucket := fmt.Sprintf("rate:%s:%d", key, index)

	count, err := l.rdb.Incr(ctx, bucket).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, bucket, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	windowEnd := time.Unix((index+1)*secs, 0)
	return Result{
		Allowed:    count <= l.limit,
		Count:      count,
		Limit:      l.limit,
		ResetAfter: windowEnd.Sub(now),
	}, nil
}
