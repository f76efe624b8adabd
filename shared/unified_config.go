package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// UnifiedConfiguration holds all tunables that are not secrets or endpoints
type UnifiedConfiguration struct {
	Importer ImporterConfig `json:"importer"`
	Database DatabaseConfig `json:"database"`
	Batch    BatchConfig    `json:"batch"`
	Cache    CacheConfig    `json:"cache"`
	Logging  LoggingConfig  `json:"logging"`
	Retry    RetryConfig    `json:"retry"`
}

// ImporterConfig holds configuration for the IPO detail page importer
type ImporterConfig struct {
	BaseURL            string        `json:"base_url"`
	HTTPRequestTimeout time.Duration `json:"http_timeout"`
	RequestRateLimit   time.Duration `json:"rate_limit"`
	UserAgent          string        `json:"user_agent"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns       int           `json:"max_open_conns"`
	MaxIdleConns       int           `json:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `json:"conn_max_idle_time"`
	PingTimeout        time.Duration `json:"ping_timeout"`
	SlowQueryThreshold time.Duration `json:"slow_query_threshold"`
}

// BatchConfig holds bid batch submission configuration
type BatchConfig struct {
	MaxConcurrency           int           `json:"max_concurrency"`
	Timeout                  time.Duration `json:"timeout"`
	ApplicationNumberRetries int           `json:"application_number_retries"`
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	DefaultTTL time.Duration `json:"default_ttl"`
	MaxSize    int           `json:"max_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Importer: ImporterConfig{
			BaseURL:            "https://www.chittorgarh.com",
			HTTPRequestTimeout: 30 * time.Second,
			RequestRateLimit:   2 * time.Second,
			UserAgent:          "Mozilla/5.0 (compatible; ipo-subbroker-importer/1.0)",
		},
		Database: DatabaseConfig{
			MaxOpenConns:       25,
			MaxIdleConns:       5,
			ConnMaxLifetime:    5 * time.Minute,
			ConnMaxIdleTime:    5 * time.Minute,
			PingTimeout:        5 * time.Second,
			SlowQueryThreshold: time.Second,
		},
		Batch: BatchConfig{
			MaxConcurrency:           5,
			Timeout:                  30 * time.Second,
			ApplicationNumberRetries: 3,
		},
		Cache: CacheConfig{
			DefaultTTL: 5 * time.Minute,
			MaxSize:    1000,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "ipo-subbroker",
		},
		Retry: DefaultRetryConfig(),
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	defaults := NewDefaultUnifiedConfiguration()

	if c.Importer.BaseURL == "" {
		c.Importer.BaseURL = defaults.Importer.BaseURL
		logger.Debug("Applied default Importer.BaseURL")
	}
	if c.Importer.HTTPRequestTimeout <= 0 {
		c.Importer.HTTPRequestTimeout = defaults.Importer.HTTPRequestTimeout
		logger.Debug("Applied default Importer.HTTPRequestTimeout")
	}
	if c.Importer.RequestRateLimit <= 0 {
		c.Importer.RequestRateLimit = defaults.Importer.RequestRateLimit
		logger.Debug("Applied default Importer.RequestRateLimit")
	}
	if c.Importer.UserAgent == "" {
		c.Importer.UserAgent = defaults.Importer.UserAgent
	}

	// Database
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
		logger.Debug("Applied default Database.MaxOpenConns")
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
		logger.Debug("Applied default Database.MaxIdleConns")
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaults.Database.ConnMaxLifetime
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}
	if c.Database.ConnMaxIdleTime <= 0 {
		c.Database.ConnMaxIdleTime = defaults.Database.ConnMaxIdleTime
	}
	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = defaults.Database.PingTimeout
	}
	if c.Database.SlowQueryThreshold <= 0 {
		c.Database.SlowQueryThreshold = defaults.Database.SlowQueryThreshold
	}

	// Batch
	if c.Batch.MaxConcurrency <= 0 {
		c.Batch.MaxConcurrency = defaults.Batch.MaxConcurrency
		logger.Debug("Applied default Batch.MaxConcurrency")
	}
	if c.Batch.Timeout <= 0 {
		c.Batch.Timeout = defaults.Batch.Timeout
		logger.Debug("Applied default Batch.Timeout")
	}
	if c.Batch.ApplicationNumberRetries <= 0 {
		c.Batch.ApplicationNumberRetries = defaults.Batch.ApplicationNumberRetries
	}

	// Cache
	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = defaults.Cache.DefaultTTL
		logger.Debug("Applied default Cache.DefaultTTL")
	}
	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = defaults.Cache.MaxSize
		logger.Debug("Applied default Cache.MaxSize")
	}

	// Logging
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = defaults.Logging.ServiceName
	}

	// Retry
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = defaults.Retry.MaxRetries
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = defaults.Retry.BaseDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = defaults.Retry.MaxDelay
	}
	if c.Retry.BackoffFactor < 1 {
		c.Retry.BackoffFactor = defaults.Retry.BackoffFactor
	}
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFromJSON deserializes configuration from JSON
func (c *UnifiedConfiguration) LoadFromJSON(jsonData []byte) error {
	if err := json.Unmarshal(jsonData, c); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.ValidateAndApplyDefaults()
	return nil
}
