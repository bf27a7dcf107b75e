package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds service configuration, loaded from environment variables with
// sensible defaults for local development.
type Config struct {
	ServiceName string
	Port        string
	Env         string
	LogLevel    string
	RedisURL    string

	// Optimization defaults, overridable per request.
	SalaryCap  int
	MaxPerTeam int

	// Resource limits.
	SolveTimeout   time.Duration
	RequestTimeout time.Duration
	MaxLineups     int
	MaxPoolSize    int
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVICE_NAME", "lineup-optimizer")
	v.SetDefault("PORT", "8082")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SALARY_CAP", 70000)
	v.SetDefault("MAX_PER_TEAM", 3)
	v.SetDefault("SOLVE_TIMEOUT", "8s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("MAX_LINEUPS", 20)
	v.SetDefault("MAX_POOL_SIZE", 2000)

	cfg := &Config{
		ServiceName:    v.GetString("SERVICE_NAME"),
		Port:           v.GetString("PORT"),
		Env:            v.GetString("ENV"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		RedisURL:       v.GetString("REDIS_URL"),
		SalaryCap:      v.GetInt("SALARY_CAP"),
		MaxPerTeam:     v.GetInt("MAX_PER_TEAM"),
		SolveTimeout:   v.GetDuration("SOLVE_TIMEOUT"),
		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		MaxLineups:     v.GetInt("MAX_LINEUPS"),
		MaxPoolSize:    v.GetInt("MAX_POOL_SIZE"),
	}

	if cfg.SalaryCap <= 0 {
		return nil, fmt.Errorf("SALARY_CAP must be positive, got %d", cfg.SalaryCap)
	}
	if cfg.SolveTimeout <= 0 || cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be positive")
	}
	if cfg.SolveTimeout > cfg.RequestTimeout {
		return nil, fmt.Errorf("SOLVE_TIMEOUT (%s) exceeds REQUEST_TIMEOUT (%s)", cfg.SolveTimeout, cfg.RequestTimeout)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev" || c.Env == "local"
}
