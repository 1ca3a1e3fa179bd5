package errors

import (
	"context"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recast/internal/logging"
)

func TestIsTransientClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient wrapper", Transient(assert.AnError, "provider hiccup"), true},
		{"permanent wrapper", Permanent(assert.AnError, "bad request"), false},
		{"rate limit", &RateLimitError{Err: assert.AnError}, true},
		{"plain error", assert.AnError, false},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"status 503 in message", fmt.Errorf("provider returned status 503"), true},
		{"status 401 in message", fmt.Errorf("provider returned status 401"), false},
		{"HTTP 429 in message", fmt.Errorf("HTTP 429 too many requests"), true},
		{"wrapped transient", fmt.Errorf("call failed: %w", Transient(assert.AnError, "")), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(Permanent(assert.AnError, "")))
	assert.True(t, IsPermanent(fmt.Errorf("startup: %w", ErrConfigurationMissing)))
	assert.True(t, IsPermanent(fmt.Errorf("agent: %w", ErrInputValidation)))
	assert.True(t, IsPermanent(&PermanentError{StatusCode: 400}))
	assert.False(t, IsPermanent(Transient(assert.AnError, "")))
	assert.False(t, IsPermanent(nil))
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, IsRateLimit(&RateLimitError{Err: assert.AnError}))
	assert.True(t, IsRateLimit(fmt.Errorf("provider: %w", &RateLimitError{})))
	assert.True(t, IsRateLimit(&TransientError{StatusCode: 429}))
	assert.False(t, IsRateLimit(&TransientError{StatusCode: 503}))
	assert.False(t, IsRateLimit(assert.AnError))
}

func TestBackoffGrowthAndCap(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	assert.Equal(t, time.Second, Backoff(0, cfg))
	assert.Equal(t, 2*time.Second, Backoff(1, cfg))
	assert.Equal(t, 4*time.Second, Backoff(2, cfg))
	assert.Equal(t, 10*time.Second, Backoff(5, cfg))
}

func TestBackoffJitterBounds(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 30 * time.Second, JitterFactor: 0.25}
	for i := 0; i < 50; i++ {
		d := Backoff(1, cfg)
		assert.GreaterOrEqual(t, d, 1500*time.Millisecond)
		assert.LessOrEqual(t, d, 2500*time.Millisecond)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var delays []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	result, err := RetryWithResultAndLog(context.Background(),
		RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", Transient(assert.AnError, "not yet")
			}
			return "done", nil
		}, logging.Nop(), sleep)

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := RetryWithResultAndLog(context.Background(), DefaultRetryConfig(),
		func(ctx context.Context) (int, error) {
			calls++
			return 0, Permanent(assert.AnError, "no point")
		}, logging.Nop(), func(context.Context, time.Duration) error { return nil })

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := RetryWithResultAndLog(context.Background(),
		RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, Transient(assert.AnError, "still failing")
		}, logging.Nop(), func(context.Context, time.Duration) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, calls)
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RetryWithResultAndLog(ctx, DefaultRetryConfig(),
		func(ctx context.Context) (int, error) { return 42, nil },
		logging.Nop(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
