// Package config loads the server configuration from LEAVE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds runtime configuration for the server.
type Config struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	Store       string `envconfig:"STORE" default:"sqlite"`
	DBPath      string `envconfig:"DB_PATH" default:"./data/leave.db"`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisDB     int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:"leave:"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
	RateLimit   int      `envconfig:"RATE_LIMIT" default:"300"`

	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile       string `envconfig:"LOG_FILE"`
	LogProduction bool   `envconfig:"LOG_PRODUCTION" default:"false"`

	HolidayRefresh time.Duration `envconfig:"HOLIDAY_REFRESH" default:"1h"`

	DefaultAnnual int `envconfig:"DEFAULT_ANNUAL" default:"21"`
	MaxAnnual     int `envconfig:"MAX_ANNUAL" default:"42"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("LEAVE", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case StoreSQLite, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("LEAVE_STORE must be sqlite, redis or memory, got %q", c.Store)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("LEAVE_PORT out of range: %d", c.Port)
	}
	if c.MaxAnnual <= 0 {
		return fmt.Errorf("LEAVE_MAX_ANNUAL must be positive, got %d", c.MaxAnnual)
	}
	if c.DefaultAnnual < 0 || c.DefaultAnnual > c.MaxAnnual {
		return fmt.Errorf("LEAVE_DEFAULT_ANNUAL must be within [0, %d], got %d", c.MaxAnnual, c.DefaultAnnual)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
