package gateway

import (
	"time"

	"github.com/c360/semevents/errors"
)

// Config holds configuration for the publish handler
type Config struct {
	// Path is the publish endpoint (default: "/events/publish")
	Path string `json:"path" yaml:"path"`

	// RelayID is appended to the Aggregator-Ids of every relayed event.
	// Empty leaves the chain untouched.
	RelayID string `json:"relay_id" yaml:"relay_id"`

	// MaxRequestSize limits request body size in bytes (default: 1MB)
	MaxRequestSize int64 `json:"max_request_size,omitempty" yaml:"max_request_size,omitempty"`

	// ChunkSize is the body read size fed to the deserializer (default: 4KB)
	ChunkSize int `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`

	// RateLimit caps accepted requests per second; zero disables limiting
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// RateBurst is the token bucket size (default: 10 when limiting)
	RateBurst int `json:"rate_burst,omitempty" yaml:"rate_burst,omitempty"`

	// RelayTimeout bounds relaying the events of one request (default: 30s)
	RelayTimeout time.Duration `json:"relay_timeout,omitempty" yaml:"relay_timeout,omitempty"`

	// EnableCORS enables CORS headers (default: false, requires explicit cors_origins)
	EnableCORS bool `json:"enable_cors" yaml:"enable_cors"`

	// CORSOrigins lists allowed CORS origins (required when EnableCORS is true)
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

// Validate ensures the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	if c.Path == "" {
		c.Path = "/events/publish"
	}
	if c.Path[0] != '/' {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"path must start with /")
	}

	if c.MaxRequestSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size cannot be negative")
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = 1024 * 1024 // 1MB default
	}
	if c.MaxRequestSize > 100*1024*1024 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size cannot exceed 100MB")
	}

	if c.ChunkSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"chunk_size cannot be negative")
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 4096
	}

	if c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"rate_limit and rate_burst cannot be negative")
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		c.RateBurst = 10
	}

	if c.RelayTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"relay_timeout cannot be negative")
	}
	if c.RelayTimeout == 0 {
		c.RelayTimeout = 30 * time.Second
	}

	// CORS requires explicit origin configuration
	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"enable_cors requires explicit cors_origins configuration (use [\"*\"] for development only)")
	}

	return nil
}

// DefaultConfig returns default handler configuration
func DefaultConfig() Config {
	return Config{
		Path:           "/events/publish",
		MaxRequestSize: 1024 * 1024,
		ChunkSize:      4096,
		RelayTimeout:   30 * time.Second,
		CORSOrigins:    []string{},
	}
}
