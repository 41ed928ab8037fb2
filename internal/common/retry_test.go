package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noSleep 记录退避时长但不真正等待
func noSleep(delays *[]time.Duration) RetryOption {
	return withSleeper(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	})
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	tests := []struct {
		name             string
		failUntilN       int
		maxRetries       int
		expectedAttempts int
		shouldSucceed    bool
	}{
		{name: "第二次成功", failUntilN: 2, maxRetries: 3, expectedAttempts: 2, shouldSucceed: true},
		{name: "最后一次重试成功", failUntilN: 4, maxRetries: 3, expectedAttempts: 4, shouldSucceed: true},
		{name: "全部失败", failUntilN: 10, maxRetries: 3, expectedAttempts: 4, shouldSucceed: false},
		{name: "不重试", failUntilN: 10, maxRetries: 0, expectedAttempts: 1, shouldSucceed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			attempts := 0

			err := Do(context.Background(), func(context.Context) error {
				attempts++
				if attempts < tt.failUntilN {
					return errors.New("temporary failure")
				}
				return nil
			}, WithMaxRetries(tt.maxRetries), noSleep(&delays))

			if tt.shouldSucceed {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "temporary failure")
			}
			assert.Equal(t, tt.expectedAttempts, attempts)
			assert.Len(t, delays, tt.expectedAttempts-1)
		})
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	var delays []time.Duration
	attempts := 0
	sentinel := errors.New("bad request")

	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return Permanent(sentinel)
	}, noSleep(&delays))

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, delays)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	err := Do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("always fails")
	}, WithInitialDelay(time.Hour), WithMaxRetries(5))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDo_ExponentialBackoffIsCapped(t *testing.T) {
	var delays []time.Duration

	_ = Do(context.Background(), func(context.Context) error {
		return errors.New("fail")
	},
		WithMaxRetries(5),
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(500*time.Millisecond),
		WithMultiplier(2),
		noSleep(&delays),
	)

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}, delays)
}

func TestDo_NilFunction(t *testing.T) {
	err := Do(context.Background(), nil)
	assert.EqualError(t, err, "retry: function cannot be nil")
}

func TestDo_InvalidOptionsKeepDefaults(t *testing.T) {
	cfg := defaultRetryConfig()
	for _, opt := range []RetryOption{WithMaxRetries(-1), WithInitialDelay(0), WithMaxDelay(-time.Second), WithMultiplier(0)} {
		opt(cfg)
	}

	assert.Equal(t, 3, cfg.maxRetries)
	assert.Equal(t, time.Second, cfg.initialDelay)
	assert.Equal(t, 30*time.Second, cfg.maxDelay)
	assert.Equal(t, 2.0, cfg.multiplier)
}
