package config

import "time"

// ConnectorConfig configures one source or target connector.
type ConnectorConfig struct {
	// Type selects the connector implementation (e.g. "rest")
	Type string `yaml:"type" json:"type"`
	// BaseURL is the root of the remote API
	BaseURL string `yaml:"base_url" json:"base_url"`
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// RetryAttempts sets maximum attempts for retryable failures
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RequestTimeout bounds a single remote call
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// CircuitBreaker enables the circuit breaker around remote calls
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	// Credentials stores authentication settings (use ${ENV} in files).
	// Recognised keys: token, client_id, client_secret, token_url, scopes.
	Credentials map[string]string `yaml:"credentials" json:"credentials"`
	// Headers are sent with every request
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// NewConnectorConfig returns connector defaults for the given type.
func NewConnectorConfig(connectorType string) ConnectorConfig {
	return ConnectorConfig{
		Type:            connectorType,
		RateLimitPerSec: 10,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		RequestTimeout:  60 * time.Second,
		CircuitBreaker:  true,
		Credentials:     make(map[string]string),
		Headers:         make(map[string]string),
	}
}

// IsRateLimited returns true if rate limiting is enabled
func (c *ConnectorConfig) IsRateLimited() bool {
	return c.RateLimitPerSec > 0
}

// HasOAuth2 returns true when client credentials are configured
func (c *ConnectorConfig) HasOAuth2() bool {
	return c.Credentials["client_id"] != "" && c.Credentials["token_url"] != ""
}

// CheckpointConfig selects where last-successful-sync times are kept.
type CheckpointConfig struct {
	// Type is none, file or postgres
	Type string `yaml:"type" json:"type"`
	// Path is the YAML file used by the file store
	Path string `yaml:"path" json:"path"`
	// DSN is the postgres connection string
	DSN string `yaml:"dsn" json:"dsn"`
	// Table is the postgres table name
	Table string `yaml:"table" json:"table"`
}

// ArchiveConfig selects where entity batches are archived.
type ArchiveConfig struct {
	// Type is none, local or s3
	Type string `yaml:"type" json:"type"`
	// Dir is the local archive directory
	Dir string `yaml:"dir" json:"dir"`
	// Bucket, Prefix, Region and Endpoint configure the S3 sink
	Bucket   string `yaml:"bucket" json:"bucket"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	Region   string `yaml:"region" json:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Compression is gzip (default), zstd or none
	Compression string `yaml:"compression" json:"compression"`
}
