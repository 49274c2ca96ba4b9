package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllow(t *testing.T) {
	tb := NewTokenBucket(60, 2)
	clock := time.Unix(1_700_000_000, 0)
	tb.now = func() time.Time { return clock }
	tb.lastRefillTime = clock

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "桶已空")

	// 60 qpm 即每秒一个令牌
	clock = clock.Add(time.Second)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	// 不超过容量
	clock = clock.Add(time.Hour)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestNewTokenBucketDefaults(t *testing.T) {
	tb := NewTokenBucket(0, 0)
	assert.InDelta(t, 1.0, tb.rate, 1e-9)
	assert.InDelta(t, 30.0, tb.capacity, 1e-9)

	tb = NewTokenBucket(1, 0)
	assert.InDelta(t, 1.0, tb.capacity, 1e-9)
}

func TestWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryWithBackoff(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 2)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: tika 503", ErrRetryable)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("bad document")
	err = tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "不可重试的错误不重试")

	calls = 0
	err = tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return fmt.Errorf("%w: connection refused", ErrRetryable)
	})
	assert.ErrorIs(t, err, ErrRetryable)
	assert.Equal(t, 3, calls)
}
