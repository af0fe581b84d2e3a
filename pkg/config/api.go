package config

import (
	"fmt"
	"time"
)

const (
	// DefaultAPIListen is the default listen address for the API server.
	DefaultAPIListen = ":8080"

	// DefaultUploadTTL is how long an uploaded-but-unsubmitted file is kept.
	DefaultUploadTTL = time.Hour
)

// APIConfig contains all API server configuration.
type APIConfig struct {
	Server  APIServerConfig  `yaml:"server" mapstructure:"server"`
	Auth    APIAuthConfig    `yaml:"auth" mapstructure:"auth"`
	Uploads APIUploadsConfig `yaml:"uploads,omitempty" mapstructure:"uploads"`
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Public  RateLimitTier `yaml:"public,omitempty" mapstructure:"public"`
	Write   RateLimitTier `yaml:"write,omitempty" mapstructure:"write"`
}

// RateLimitTier defines request limits for a specific tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// APIAuthConfig contains authentication settings for state-changing endpoints.
type APIAuthConfig struct {
	Basic BasicAuthConfig `yaml:"basic,omitempty" mapstructure:"basic"`
}

// BasicAuthConfig configures username/password authentication.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a basic auth user. PasswordHash is a bcrypt hash.
type BasicAuthUser struct {
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash"`
}

// APIUploadsConfig controls how pending uploads are retained.
type APIUploadsConfig struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

func (c *APIConfig) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultAPIListen
	}

	if c.Uploads.TTL <= 0 {
		c.Uploads.TTL = DefaultUploadTTL
	}

	if c.Server.RateLimit.Public.RequestsPerMinute <= 0 {
		c.Server.RateLimit.Public.RequestsPerMinute = 120
	}

	if c.Server.RateLimit.Write.RequestsPerMinute <= 0 {
		c.Server.RateLimit.Write.RequestsPerMinute = 10
	}
}

// ValidateAPI checks the API section for errors.
func (c *Config) ValidateAPI() error {
	if c.API == nil {
		return fmt.Errorf("api section is required in config")
	}

	if c.API.Auth.Basic.Enabled {
		if len(c.API.Auth.Basic.Users) == 0 {
			return fmt.Errorf("api.auth.basic: at least one user is required")
		}

		for i, u := range c.API.Auth.Basic.Users {
			if u.Username == "" {
				return fmt.Errorf("api.auth.basic.users[%d]: username is required", i)
			}

			if u.PasswordHash == "" {
				return fmt.Errorf("api.auth.basic.users[%d]: password_hash is required", i)
			}
		}
	}

	return nil
}

// DefaultAPIConfig returns an API configuration with defaults applied.
func DefaultAPIConfig() *APIConfig {
	cfg := &APIConfig{}
	cfg.applyDefaults()

	return cfg
}
