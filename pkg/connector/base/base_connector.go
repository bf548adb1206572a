// Package base provides the foundation shared by the ERP connectors: a
// BaseConnector owning the rate-limited HTTP client and retry policy, plus
// progress reporting for the engine's worker pools.
//
// # Usage
//
// Connectors embed BaseConnector and route every remote call through Call:
//
//	type Source struct {
//	    *base.BaseConnector
//	}
//
//	func (s *Source) Probe(ctx context.Context, recordType string, w models.Window) (*models.PageResult, error) {
//	    var out models.PageResult
//	    err := s.Call(ctx, "probe", func(ctx context.Context) error {
//	        return s.Client().DoJSON(ctx, http.MethodPost, "/search/"+recordType, nil, query(w), &out)
//	    })
//	    return &out, err
//	}
package base

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/clients"
	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/connector/core"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/logger"
	"github.com/ajitpratap0/nsagency/pkg/metrics"
	"github.com/ajitpratap0/nsagency/pkg/observability"
)

// BaseConnector provides common functionality for all connectors.
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	logger        *zap.Logger

	client      *clients.HTTPClient
	retryPolicy *RetryPolicy

	closed atomic.Bool
}

// NewBaseConnector builds the HTTP client and retry policy from cfg.
func NewBaseConnector(ctx context.Context, name string, connectorType core.ConnectorType, version string, cfg config.ConnectorConfig, log *zap.Logger) (*BaseConnector, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "base_url is required").
			WithDetail("connector", name)
	}
	if log == nil {
		log = logger.Get()
	}
	log = log.With(zap.String("connector", name), zap.String("connector_type", string(connectorType)))

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.BaseURL = cfg.BaseURL
	httpCfg.RateLimit = float64(cfg.RateLimitPerSec)
	httpCfg.RateBurst = cfg.RateLimitPerSec
	httpCfg.CircuitBreakerEnabled = cfg.CircuitBreaker
	httpCfg.Headers = cfg.Headers
	if cfg.RequestTimeout > 0 {
		httpCfg.RequestTimeout = cfg.RequestTimeout
	}

	var opts []clients.Option
	if ts := clients.TokenSource(ctx, cfg.Credentials); ts != nil {
		opts = append(opts, clients.WithTokenSource(ts))
	}

	retry := DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		retry = NewRetryPolicy(cfg.RetryAttempts, cfg.RetryDelay)
	}
	retry.OnRetry = func(operation string, attempt int, delay time.Duration, err error) {
		metrics.RemoteRetries.WithLabelValues(name, operation, string(errors.TypeOf(err))).Inc()
		log.Warn("retrying remote call",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		logger:        log,
		client:        clients.NewHTTPClient(httpCfg, log, opts...),
		retryPolicy:   retry,
	}, nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string { return bc.name }

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType { return bc.connectorType }

// Version returns the connector version
func (bc *BaseConnector) Version() string { return bc.version }

// Logger returns the connector logger
func (bc *BaseConnector) Logger() *zap.Logger { return bc.logger }

// Client returns the HTTP client
func (bc *BaseConnector) Client() *clients.HTTPClient { return bc.client }

// RetryPolicy returns the retry policy
func (bc *BaseConnector) RetryPolicy() *RetryPolicy { return bc.retryPolicy }

// Call runs one remote operation inside a span, retrying retryable
// failures. The final error is always a transport error wrapping the cause.
func (bc *BaseConnector) Call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if bc.closed.Load() {
		return errors.New(errors.ErrorTypeTransport, "connector is closed").
			WithDetail("connector", bc.name)
	}

	err := observability.Trace(ctx, bc.name+"."+operation, func(ctx context.Context) error {
		return bc.retryPolicy.Do(ctx, operation, fn)
	})
	if err == nil {
		return nil
	}

	bc.logger.Warn("remote call failed",
		append(observability.LogFields(ctx), zap.String("operation", operation), zap.Error(err))...)
	if errors.IsType(err, errors.ErrorTypeTransport) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeTransport, operation+" failed").
		WithDetail("connector", bc.name)
}

// Close releases the HTTP client
func (bc *BaseConnector) Close(ctx context.Context) error {
	if bc.closed.Swap(true) {
		return nil
	}
	return bc.client.Close()
}
