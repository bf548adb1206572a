package clients

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outgoing requests.
type RateLimiter interface {
	// Allow reports whether a request may be sent now
	Allow() bool

	// Wait blocks until a request may be sent or ctx is done
	Wait(ctx context.Context) error
}

// RateLimiterStats reports how much a limiter has throttled.
type RateLimiterStats struct {
	Rate            float64       `json:"rate"`
	Burst           int           `json:"burst"`
	AllowedRequests int64         `json:"allowed_requests"`
	BlockedRequests int64         `json:"blocked_requests"`
	AverageWaitTime time.Duration `json:"average_wait_time"`
}

// RequestLimiter is a token bucket limiter for calls against the ERP
// and target APIs. It counts allowed and throttled requests.
type RequestLimiter struct {
	limiter *rate.Limiter

	allowed atomic.Int64
	blocked atomic.Int64
	waited  atomic.Int64
}

// NewRateLimiter allows perSecond requests per second with bursts of up
// to burst requests.
func NewRateLimiter(perSecond float64, burst int) *RequestLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RequestLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow takes a token if one is available.
func (l *RequestLimiter) Allow() bool {
	if l.limiter.Allow() {
		l.allowed.Add(1)
		return true
	}
	l.blocked.Add(1)
	return false
}

// Wait blocks for a token. It fails early when ctx expires before the
// token would become available.
func (l *RequestLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		l.blocked.Add(1)
		return err
	}
	l.allowed.Add(1)
	l.waited.Add(int64(time.Since(start)))
	return nil
}

// Stats returns the counters collected so far.
func (l *RequestLimiter) Stats() RateLimiterStats {
	allowed := l.allowed.Load()
	var avg time.Duration
	if allowed > 0 {
		avg = time.Duration(l.waited.Load() / allowed)
	}
	return RateLimiterStats{
		Rate:            float64(l.limiter.Limit()),
		Burst:           l.limiter.Burst(),
		AllowedRequests: allowed,
		BlockedRequests: l.blocked.Load(),
		AverageWaitTime: avg,
	}
}
