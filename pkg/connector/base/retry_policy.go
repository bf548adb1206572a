package base

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ajitpratap0/nsagency/pkg/errors"
)

// RetryPolicy retries remote calls with jittered exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64

	// Retryable reports whether err deserves another attempt. Nil means
	// errors.IsRetryable: rate limits, timeouts and connection failures.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(operation string, attempt int, delay time.Duration, err error)
}

// NewRetryPolicy returns a policy making up to maxAttempts calls.
func NewRetryPolicy(maxAttempts int, initialDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	return &RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.25,
	}
}

// DefaultRetryPolicy makes three attempts starting at one second.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(3, time.Second)
}

// Do runs fn until it succeeds, fails with a non-retryable error or the
// attempts run out. Exhaustion keeps the type of the last failure.
func (rp *RetryPolicy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	retryable := rp.Retryable
	if retryable == nil {
		retryable = errors.IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == rp.MaxAttempts-1 {
			break
		}

		delay := rp.Delay(attempt)
		if rp.OnRetry != nil {
			rp.OnRetry(operation, attempt+1, delay, lastErr)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTransport, operation+" canceled during retry")
		case <-timer.C:
		}
	}

	if rp.MaxAttempts == 1 || !retryable(lastErr) {
		return lastErr
	}
	return errors.Wrap(lastErr, errors.TypeOf(lastErr), fmt.Sprintf("%s gave up after %d attempts", operation, rp.MaxAttempts))
}

// Delay returns the backoff before attempt+1, jitter included.
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))
	if ceiling := float64(rp.MaxDelay); rp.MaxDelay > 0 && delay > ceiling {
		delay = ceiling
	}
	if rp.Jitter > 0 {
		delta := delay * rp.Jitter
		delay = delay - delta + rand.Float64()*2*delta //nolint:gosec // jitter only
	}
	return time.Duration(delay)
}
