package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoValSucceedsAfterRateLimits(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		Multiplier:     2.0,
		ShouldRetry:    IsRateLimit,
	}

	got, err := DoVal(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewRateLimitError(eris.New("status 429"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestDoValNonRetryableErrorPropagatesImmediately(t *testing.T) {
	attempts := 0
	cfg := SearchRetryConfig()
	cfg.InitialBackoff = time.Millisecond

	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, eris.New("malformed request")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoValExhaustsRetries(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		ShouldRetry:    IsRateLimit,
	}

	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, NewRateLimitError(eris.New("too many requests"))
	})

	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	assert.Equal(t, 3, attempts)
}

func TestDoValStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Hour,
		ShouldRetry:    IsRateLimit,
	}

	done := make(chan error, 1)
	go func() {
		_, err := DoVal(ctx, cfg, func(ctx context.Context) (int, error) {
			return 0, NewRateLimitError(eris.New("429: throttled"))
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("retry did not honor context cancellation")
	}
}

func TestIsRateLimitMessagePatterns(t *testing.T) {
	assert.True(t, IsRateLimit(eris.New("upstream returned status 429")))
	assert.True(t, IsRateLimit(eris.New("Too Many Requests")))
	assert.True(t, IsRateLimit(eris.Wrap(NewRateLimitError(eris.New("x")), "search: pass 1")))
	assert.False(t, IsRateLimit(eris.New("connection refused")))
	assert.False(t, IsRateLimit(nil))
}

func TestIsQuotaExhausted(t *testing.T) {
	assert.True(t, IsQuotaExhausted(eris.New("your credit balance is too low")))
	assert.True(t, IsQuotaExhausted(eris.New("insufficient_quota: see billing")))
	assert.True(t, IsQuotaExhausted(NewQuotaExhaustedError("openai", eris.New("blocked"))))
	assert.False(t, IsQuotaExhausted(eris.New("status 429")))
}

func TestIsTemperatureUnsupported(t *testing.T) {
	assert.True(t, IsTemperatureUnsupported(eris.New("temperature is unsupported with this model")))
	assert.True(t, IsTemperatureUnsupported(eris.New("model does not support temperature")))
	assert.False(t, IsTemperatureUnsupported(eris.New("bad request")))
}
