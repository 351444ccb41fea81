// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AuthConfig holds identity provider configuration. When VerifyURL is
// empty, the static token map is used (development only).
type AuthConfig struct {
	VerifyURL     string            `mapstructure:"verify_url"`
	VerifyTimeout time.Duration     `mapstructure:"verify_timeout"`
	StaticTokens  map[string]string `mapstructure:"static_tokens"`
}

// CORSConfig holds the origin allow-list. Requests from origins not on
// the list get Access-Control-Allow-Origin: null.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig holds rate limiter configuration. Backend is "memory"
// (per-instance) or "redis" (fleet-wide).
type RateLimitConfig struct {
	Backend           string        `mapstructure:"backend"`
	RedisAddr         string        `mapstructure:"redis_addr"`
	RedisPassword     string        `mapstructure:"redis_password"`
	RedisDB           int           `mapstructure:"redis_db"`
	EarnMax           int           `mapstructure:"earn_max"`
	EarnWindow        time.Duration `mapstructure:"earn_window"`
	SpendMax          int           `mapstructure:"spend_max"`
	SpendWindow       time.Duration `mapstructure:"spend_window"`
	DestructiveMax    int           `mapstructure:"destructive_max"`
	DestructiveWindow time.Duration `mapstructure:"destructive_window"`
}

// Addr returns the server listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the given directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. SERVER_PORT, DATABASE_HOST, RATELIMIT_BACKEND.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ledger")
	v.SetDefault("database.name", "ledger")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Auth defaults
	v.SetDefault("auth.verify_timeout", "5s")

	// Rate limit defaults
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.earn_max", 15)
	v.SetDefault("ratelimit.earn_window", "1m")
	v.SetDefault("ratelimit.spend_max", 20)
	v.SetDefault("ratelimit.spend_window", "1m")
	v.SetDefault("ratelimit.destructive_max", 3)
	v.SetDefault("ratelimit.destructive_window", "10m")
}
