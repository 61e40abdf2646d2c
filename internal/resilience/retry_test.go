package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/motolens/internal/apierr"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

// runRetry drives DoVal with a call that yields no value.
func runRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func TestDoVal_DefaultIsSingleAttempt(t *testing.T) {
	var calls int
	err := runRetry(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return apierr.New(apierr.Timeout, "nhtsa", "")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesTransient(t *testing.T) {
	var calls int
	err := runRetry(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return apierr.New(apierr.ConnectionError, "carapi", "reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	var calls int
	err := runRetry(context.Background(), fastRetry(2), func(_ context.Context) error {
		calls++
		return apierr.New(apierr.Timeout, "autodev", "")
	})
	assert.True(t, apierr.IsKind(err, apierr.Timeout))
	assert.Equal(t, 2, calls)
}

func TestDoVal_NonTransientNotRetried(t *testing.T) {
	for _, kind := range []apierr.Kind{apierr.RateLimited, apierr.AuthenticationFailed, apierr.NotFound, apierr.MalformedResponse} {
		var calls int
		err := runRetry(context.Background(), fastRetry(3), func(_ context.Context) error {
			calls++
			return apierr.New(kind, "autodev", "")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls, "kind=%s", kind)
	}
}

func TestDoVal_ContextCancelledStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := runRetry(ctx, fastRetry(5), func(_ context.Context) error {
		calls++
		cancel()
		return apierr.New(apierr.Timeout, "nhtsa", "")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_CustomShouldRetryAndOnRetry(t *testing.T) {
	var retried []int
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "again" }
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	var calls int
	err := runRetry(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return errors.New("again")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoVal(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastRetry(2), func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, apierr.New(apierr.Timeout, "nhtsa", "")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)

	val, err = DoVal(context.Background(), fastRetry(1), func(_ context.Context) (int, error) {
		return 7, errors.New("fail")
	})
	require.Error(t, err)
	assert.Zero(t, val)
}

func TestComputeBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2.0}
	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, cfg))
	assert.Equal(t, time.Second, computeBackoff(10, cfg))

	cfg.JitterFraction = 0.5
	for i := 0; i < 50; i++ {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(3, 100, 2000)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 2*time.Second, cfg.MaxBackoff)

	cfg = FromRetryConfig(0, 0, 0)
	assert.Equal(t, DefaultRetryConfig().MaxAttempts, cfg.MaxAttempts)
}

func TestRetryLogger(t *testing.T) {
	fn := RetryLogger("nhtsa", "1HGCM82633A004352")
	assert.NotPanics(t, func() { fn(1, errors.New("boom")) })
}
