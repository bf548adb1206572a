// Package clients provides the HTTP plumbing shared by the ERP connectors:
// a pooled HTTP/2 capable client, token bucket rate limiting, a circuit
// breaker and OAuth2 token sources.
package clients

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/oauth2"

	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/json"
	"github.com/ajitpratap0/nsagency/pkg/observability"
)

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	BaseURL string `json:"base_url"`

	// Connection settings
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	EnableHTTP2         bool          `json:"enable_http2"`

	// Timeouts
	DialTimeout    time.Duration `json:"dial_timeout"`
	KeepAlive      time.Duration `json:"keep_alive"`
	RequestTimeout time.Duration `json:"request_timeout"`

	// Rate limiting (0 disables)
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Circuit breaker
	CircuitBreakerEnabled bool                 `json:"circuit_breaker_enabled"`
	CircuitBreaker        CircuitBreakerConfig `json:"circuit_breaker"`

	UserAgent string            `json:"user_agent"`
	Headers   map[string]string `json:"headers"`
}

// DefaultHTTPConfig returns default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           30 * time.Second,
		KeepAlive:             30 * time.Second,
		RequestTimeout:        60 * time.Second,
		RateLimit:             10,
		RateBurst:             5,
		CircuitBreakerEnabled: true,
		CircuitBreaker:        DefaultCircuitBreakerConfig(),
		UserAgent:             "nsagency/1.0",
	}
}

// HTTPClient sends JSON requests to one remote API.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport

	rateLimiter    RateLimiter
	circuitBreaker *CircuitBreaker
	tokenSource    oauth2.TokenSource

	totalRequests  int64
	failedRequests int64
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithTokenSource authenticates every request with tokens from ts.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *HTTPClient) {
		c.tokenSource = ts
	}
}

// WithRateLimiter replaces the configured rate limiter.
func WithRateLimiter(rl RateLimiter) Option {
	return func(c *HTTPClient) {
		c.rateLimiter = rl
	}
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger, opts ...Option) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	if config.RateLimit > 0 {
		client.rateLimiter = NewRateLimiter(config.RateLimit, config.RateBurst)
	}
	if config.CircuitBreakerEnabled {
		client.circuitBreaker = NewCircuitBreaker(config.CircuitBreaker, logger)
	}

	for _, opt := range opts {
		opt(client)
	}

	var rt http.RoundTripper = client.transport
	if client.tokenSource != nil {
		rt = &oauth2.Transport{Source: client.tokenSource, Base: client.transport}
	}
	client.httpClient = &http.Client{
		Transport: rt,
		Timeout:   config.RequestTimeout,
	}

	return client
}

// Do performs an HTTP request after rate limiting and circuit breaker checks.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			atomic.AddInt64(&c.failedRequests, 1)
			return nil, errors.Wrap(err, errors.ErrorTypeRateLimit, "rate limiter wait aborted")
		}
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, errors.New(errors.ErrorTypeConnection, "circuit breaker open").
			WithDetail("host", req.URL.Host)
	}

	atomic.AddInt64(&c.totalRequests, 1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		if c.circuitBreaker != nil {
			c.circuitBreaker.RecordFailure()
		}
		return nil, classifyTransportError(err)
	}

	if c.circuitBreaker != nil {
		if resp.StatusCode >= 500 {
			c.circuitBreaker.RecordFailure()
		} else {
			c.circuitBreaker.RecordSuccess()
		}
	}

	return resp, nil
}

// DoJSON sends in as the JSON body of method path and decodes the response
// into out. Either may be nil. Non-2xx statuses are returned as typed
// errors: 429 is a rate limit, 408/504 a timeout and other 5xx a connection
// failure; all three are retryable.
func (c *HTTPClient) DoJSON(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	observability.InjectHeaders(ctx, req.Header)

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, path, resp.StatusCode, payload)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to decode response body").
			WithDetail("path", path)
	}
	return nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	total := atomic.LoadInt64(&c.totalRequests)
	failed := atomic.LoadInt64(&c.failedRequests)

	stats := HTTPStats{
		TotalRequests:  total,
		FailedRequests: failed,
	}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total) * 100
	}
	if c.circuitBreaker != nil {
		stats.CircuitState = c.circuitBreaker.State().String()
	}
	return stats
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
	CircuitState   string  `json:"circuit_state,omitempty"`
}

func statusError(method, path string, status int, payload []byte) error {
	errType := errors.ErrorTypeTransport
	switch {
	case status == http.StatusTooManyRequests:
		errType = errors.ErrorTypeRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		errType = errors.ErrorTypeTimeout
	case status >= 500:
		errType = errors.ErrorTypeConnection
	}

	msg := strings.TrimSpace(string(payload))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return errors.Newf(errType, "%s %s returned %d", method, path, status).
		WithDetail("status", status).
		WithDetail("body", msg)
}

func classifyTransportError(err error) error {
	if stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrorTypeTransport, "request canceled")
	}
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "request timed out")
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
}
