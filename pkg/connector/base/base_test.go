package base

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/nsagency/pkg/errors"
)

func fastPolicy(attempts int) *RetryPolicy {
	rp := NewRetryPolicy(attempts, time.Millisecond)
	rp.Jitter = 0
	return rp
}

func TestRetryPolicyRetriesUntilSuccess(t *testing.T) {
	rp := fastPolicy(3)
	rp.Retryable = func(error) bool { return true }

	calls := 0
	err := rp.Do(context.Background(), "probe", func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyExhausted(t *testing.T) {
	rp := fastPolicy(2)
	var retried []int
	rp.OnRetry = func(op string, attempt int, _ time.Duration, _ error) {
		assert.Equal(t, "probe", op)
		retried = append(retried, attempt)
	}

	calls := 0
	err := rp.Do(context.Background(), "probe", func(context.Context) error {
		calls++
		return errors.New(errors.ErrorTypeTimeout, "slow")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1}, retried)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.Contains(t, err.Error(), "probe gave up after 2 attempts")
}

func TestRetryPolicySkipsNonRetryable(t *testing.T) {
	calls := 0
	boom := errors.New(errors.ErrorTypeTransport, "400 from target")
	err := fastPolicy(5).Do(context.Background(), "upsert", func(context.Context) error {
		calls++
		return boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyCancelled(t *testing.T) {
	rp := NewRetryPolicy(3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rp.Do(ctx, "probe", func(context.Context) error {
		return errors.New(errors.ErrorTypeConnection, "refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestRetryPolicyDelay(t *testing.T) {
	rp := fastPolicy(3)
	rp.InitialDelay = time.Second
	rp.MaxDelay = 3 * time.Second

	assert.Equal(t, time.Second, rp.Delay(0))
	assert.Equal(t, 2*time.Second, rp.Delay(1))
	assert.Equal(t, 3*time.Second, rp.Delay(5))

	rp.Jitter = 0.5
	for i := 0; i < 20; i++ {
		d := rp.Delay(0)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestProgressReporter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pr := NewProgressReporter(zap.New(core), "transform")

	for i := 1; i <= 4; i++ {
		pr.Observe(i, 4)
	}

	// every quarter clears the ten percent step
	assert.Equal(t, 4, logs.FilterMessage("progress update").Len())
	last := logs.FilterMessage("progress update").All()[3].ContextMap()
	assert.Equal(t, 100.0, last["percentage"])
	assert.Equal(t, "transform", last["stage"])

	processed, total := pr.GetProgress()
	assert.Equal(t, int64(4), processed)
	assert.Equal(t, int64(4), total)
}
