package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries: maxRetries,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
		Timeout:    1 * time.Second,
	}
}

func TestWithRetrySuccess(t *testing.T) {
	callCount := 0
	result, err := WithRetry(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		callCount++
		return "success", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 1, callCount)
}

func TestWithRetrySuccessAfterRetries(t *testing.T) {
	callCount := 0
	result, err := WithRetry(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		callCount++
		if callCount < 3 {
			return "", errors.New("temporary failure")
		}
		return "success", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 3, callCount)
}

func TestWithRetryFailureAfterMaxRetries(t *testing.T) {
	callCount := 0
	failure := errors.New("persistent failure")
	result, err := WithRetry(context.Background(), fastConfig(2), func(ctx context.Context) (string, error) {
		callCount++
		return "", failure
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Empty(t, result)
	assert.Equal(t, 3, callCount)
}

func TestWithRetrySingleAttemptReturnsRawError(t *testing.T) {
	callCount := 0
	failure := errors.New("sheet unreachable")
	_, err := WithRetry(context.Background(), fastConfig(0), func(ctx context.Context) (int, error) {
		callCount++
		return 0, failure
	})
	assert.Equal(t, failure, err)
	assert.Equal(t, 1, callCount)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("forbidden")
	config := fastConfig(5)
	config.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	callCount := 0
	_, err := WithRetry(context.Background(), config, func(ctx context.Context) (int, error) {
		callCount++
		return 0, permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, callCount)
}

func TestWithRetryAppliesAttemptTimeout(t *testing.T) {
	config := fastConfig(0)
	config.Timeout = 20 * time.Millisecond

	_, err := WithRetry(context.Background(), config, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithRetryNoTimeout(t *testing.T) {
	config := fastConfig(0)
	config.Timeout = 0

	_, err := WithRetry(context.Background(), config, func(ctx context.Context) (int, error) {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return 1, nil
	})
	assert.NoError(t, err)
}

func TestWithRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0
	_, err := WithRetry(ctx, fastConfig(5), func(ctx context.Context) (string, error) {
		callCount++
		if callCount == 2 {
			cancel()
		}
		return "", errors.New("failure")
	})
	assert.Equal(t, context.Canceled, err)
	assert.LessOrEqual(t, callCount, 3)
}

func TestCalculateBackoffDelay(t *testing.T) {
	baseDelay := 10 * time.Millisecond
	maxDelay := 100 * time.Millisecond

	tests := []struct {
		attempt     int
		minDelay    time.Duration
		maxExpected time.Duration
	}{
		{0, 5 * time.Millisecond, 15 * time.Millisecond},
		{1, 10 * time.Millisecond, 30 * time.Millisecond},
		{2, 20 * time.Millisecond, 60 * time.Millisecond},
		{3, 40 * time.Millisecond, 100 * time.Millisecond},
		{5, 50 * time.Millisecond, 100 * time.Millisecond},
		{100, 50 * time.Millisecond, 100 * time.Millisecond},
	}

	for _, test := range tests {
		for i := 0; i < 10; i++ {
			result := calculateBackoffDelay(test.attempt, baseDelay, maxDelay)
			assert.GreaterOrEqual(t, result, test.minDelay, "attempt %d", test.attempt)
			assert.LessOrEqual(t, result, test.maxExpected, "attempt %d", test.attempt)
		}
	}
}
