package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Per-key request budgets are clamped into this range on key creation and
// update. A limit of zero or below disables limiting for that key.
const (
	MinLimit     = 1
	MaxLimit     = 10000
	DefaultLimit = 120

	// Counters outlive their minute window by a small grace so requests
	// arriving at the boundary still count against the closing window.
	windowGrace = 5 * time.Second
)

// Clamp normalizes a configured limit into the accepted range. Non-positive
// values pass through unchanged and mean "unlimited".
func Clamp(limit int) int {
	if limit <= 0 {
		return limit
	}
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Counter is the slice of Redis the limiter needs. *redis.Client satisfies
// it; tests substitute an in-memory fake.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Limiter enforces a fixed one-minute window per key using atomic Redis
// increments, so concurrent requests across processes share one counter.
type Limiter struct {
	counter Counter
	now     func() time.Time
}

// New builds a limiter on the given counter backend.
func New(counter Counter) *Limiter {
	return &Limiter{counter: counter, now: time.Now}
}

// Result reports one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allow counts a request against keyID's current minute window. A
// non-positive limit admits everything. Backend errors fail open: an
// unreachable counter should not take the API down.
func (l *Limiter) Allow(ctx context.Context, keyID int64, limit int) (Result, error) {
	now := l.now().UTC()
	reset := now.Truncate(time.Minute).Add(time.Minute)

	if limit <= 0 {
		return Result{Allowed: true, Limit: limit, Remaining: -1, ResetAt: reset}, nil
	}

	window := now.Format("200601021504")
	counterKey := fmt.Sprintf("caa_rl_%d_%s", keyID, window)

	n, err := l.counter.Incr(ctx, counterKey).Result()
	if err != nil {
		return Result{Allowed: true, Limit: limit, Remaining: -1, ResetAt: reset}, fmt.Errorf("increment rate counter: %w", err)
	}
	if n == 1 {
		// First hit in this window owns setting the TTL.
		l.counter.Expire(ctx, counterKey, time.Minute+windowGrace)
	}

	remaining := limit - int(n)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   n <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   reset,
	}, nil
}
