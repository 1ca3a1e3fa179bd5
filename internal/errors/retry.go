package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"recast/internal/logging"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts  int           // retries beyond the first attempt
	BaseDelay    time.Duration // base for exponential backoff
	MaxDelay     time.Duration // cap on any single delay
	JitterFactor float64       // 0.25 means ±25%
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// Sleeper abstracts backoff waits so tests can observe them without blocking.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext waits for d or returns early when ctx is cancelled.
func SleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryWithResult executes fn with exponential backoff on transient errors.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	return RetryWithResultAndLog(ctx, config, fn, nil, nil)
}

// RetryWithResultAndLog is RetryWithResult with a custom logger and sleeper.
func RetryWithResultAndLog[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error), logger logging.Logger, sleep Sleeper) (T, error) {
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("retry")
	}
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	var zero T

	for attempt := 0; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("Retry succeeded after %d attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		logger.Debug("Attempt %d failed: %v", attempt+1, err)

		if !IsTransient(err) {
			logger.Debug("Error is not transient, stopping retries")
			return zero, err
		}

		if attempt == config.MaxAttempts {
			logger.Warn("Max retries (%d) exhausted", config.MaxAttempts+1)
			break
		}

		delay := Backoff(attempt, config)
		logger.Debug("Waiting %v before next retry", delay)
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("context cancelled during retry: %w", err)
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Backoff computes the delay before retry number attempt (0-based), applying
// exponential growth, the configured cap, and symmetric jitter.
func Backoff(attempt int, config RetryConfig) time.Duration {
	base := float64(config.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(config.MaxDelay); base > max {
		base = max
	}
	if config.JitterFactor > 0 {
		jitter := config.JitterFactor * base * (2*rand.Float64() - 1)
		base += jitter
	}
	if base < 0 {
		base = 0
	}
	d := time.Duration(base)
	if config.MaxDelay > 0 && d > config.MaxDelay {
		d = config.MaxDelay
	}
	return d
}
