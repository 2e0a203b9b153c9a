package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	failing bool
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.failing {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	f.counts[key]++
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	f.expires[key] = expiration
	cmd.SetVal(true)
	return cmd
}

func newTestLimiter(counter Counter, at time.Time) *Limiter {
	l := New(counter)
	l.now = func() time.Time { return at }
	return l
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(1))
	assert.Equal(t, 10000, Clamp(99999))
	assert.Equal(t, 120, Clamp(120))
	assert.Equal(t, 0, Clamp(0))
	assert.Equal(t, -5, Clamp(-5))
}

func TestAllowUnderLimit(t *testing.T) {
	counter := newFakeCounter()
	limiter := newTestLimiter(counter, time.Date(2026, 3, 1, 10, 30, 15, 0, time.UTC))

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(context.Background(), 7, 5)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.Allow(context.Background(), 7, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 31, 0, 0, time.UTC), res.ResetAt)
}

func TestAllowOverLimit(t *testing.T) {
	counter := newFakeCounter()
	limiter := newTestLimiter(counter, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC))

	for i := 0; i < 2; i++ {
		_, err := limiter.Allow(context.Background(), 9, 2)
		require.NoError(t, err)
	}

	res, err := limiter.Allow(context.Background(), 9, 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestWindowKeyFormat(t *testing.T) {
	counter := newFakeCounter()
	limiter := newTestLimiter(counter, time.Date(2026, 3, 1, 10, 30, 45, 0, time.UTC))

	_, err := limiter.Allow(context.Background(), 42, 10)
	require.NoError(t, err)

	assert.Contains(t, counter.counts, "caa_rl_42_202603011030")
	assert.Equal(t, time.Minute+windowGrace, counter.expires["caa_rl_42_202603011030"])
}

func TestSeparateWindows(t *testing.T) {
	counter := newFakeCounter()
	limiter := newTestLimiter(counter, time.Date(2026, 3, 1, 10, 30, 59, 0, time.UTC))

	_, err := limiter.Allow(context.Background(), 1, 1)
	require.NoError(t, err)

	limiter.now = func() time.Time { return time.Date(2026, 3, 1, 10, 31, 0, 0, time.UTC) }
	res, err := limiter.Allow(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestZeroLimitDisables(t *testing.T) {
	counter := newFakeCounter()
	limiter := newTestLimiter(counter, time.Now())

	for i := 0; i < 50; i++ {
		res, err := limiter.Allow(context.Background(), 3, 0)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	assert.Empty(t, counter.counts)
}

func TestFailsOpenOnBackendError(t *testing.T) {
	counter := newFakeCounter()
	counter.failing = true
	limiter := newTestLimiter(counter, time.Now())

	res, err := limiter.Allow(context.Background(), 3, 10)
	assert.Error(t, err)
	assert.True(t, res.Allowed)
}
