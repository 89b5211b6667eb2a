// Package config loads storefront client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	APIBaseURL string `env:"STOREFRONT_API_BASE_URL" envDefault:"http://localhost:3000/api/v1"`
	TenantID   string `env:"STOREFRONT_TENANT_ID" envDefault:"1"`

	// StoreDriver picks where the session and cart persist between runs.
	StoreDriver   string        `env:"STOREFRONT_STORE_DRIVER" envDefault:"sqlite"`
	DBPath        string        `env:"STOREFRONT_DB_PATH" envDefault:"storefront.db"`
	RedisAddr     string        `env:"STOREFRONT_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"STOREFRONT_REDIS_PASSWORD"`
	RedisDB       int           `env:"STOREFRONT_REDIS_DB" envDefault:"0"`
	RedisTTL      time.Duration `env:"STOREFRONT_REDIS_TTL" envDefault:"0s"`
	DeviceID      string        `env:"STOREFRONT_DEVICE_ID" envDefault:"default"`

	RequestTimeout time.Duration `env:"STOREFRONT_REQUEST_TIMEOUT" envDefault:"30s"`
	SyncTimeout    time.Duration `env:"STOREFRONT_SYNC_TIMEOUT" envDefault:"0s"`

	// DefaultMaxQuantity caps a cart line whose server copy carries no
	// stock count. The server still checks stock at checkout.
	DefaultMaxQuantity int `env:"STOREFRONT_DEFAULT_MAX_QUANTITY" envDefault:"999"`

	BreakerFailures uint32        `env:"STOREFRONT_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"STOREFRONT_BREAKER_COOLDOWN" envDefault:"30s"`

	// OTelEndpoint is the OTLP/HTTP traces URL, e.g.
	// http://localhost:4318/v1/traces. Empty disables tracing.
	OTelEndpoint string `env:"STOREFRONT_OTEL_ENDPOINT"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("STOREFRONT_API_BASE_URL %q is not an http(s) URL", c.APIBaseURL))
	}
	if c.OTelEndpoint != "" {
		if u, err := url.Parse(c.OTelEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("STOREFRONT_OTEL_ENDPOINT %q is not an http(s) URL", c.OTelEndpoint))
		}
	}
	if c.TenantID == "" {
		errs = append(errs, errors.New("STOREFRONT_TENANT_ID is required"))
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("STOREFRONT_DB_PATH is required for the sqlite driver"))
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("STOREFRONT_REDIS_ADDR is required for the redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STOREFRONT_STORE_DRIVER %q", c.StoreDriver))
	}

	if c.RequestTimeout < 0 || c.SyncTimeout < 0 || c.BreakerCooldown < 0 || c.RedisTTL < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.DefaultMaxQuantity <= 0 {
		errs = append(errs, errors.New("STOREFRONT_DEFAULT_MAX_QUANTITY must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
