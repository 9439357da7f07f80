package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Rate counter store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration. TrustProxy takes the client
// address from X-Forwarded-For and friends; enable it only behind a proxy.
type ServerConfig struct {
	Host           string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port           int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey         string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"SERVER_REQUEST_TIMEOUT"`
	TrustProxy     bool          `yaml:"trust_proxy" envconfig:"SERVER_TRUST_PROXY"`
}

// UpstreamConfig holds the X endpoints and client settings.
type UpstreamConfig struct {
	TokenURL       string        `yaml:"token_url" envconfig:"UPSTREAM_TOKEN_URL"`
	GraphQLURL     string        `yaml:"graphql_url" envconfig:"UPSTREAM_GRAPHQL_URL"`
	SyndicationURL string        `yaml:"syndication_url" envconfig:"UPSTREAM_SYNDICATION_URL"`
	BearerToken    string        `yaml:"bearer_token" envconfig:"UPSTREAM_BEARER_TOKEN"`
	UserAgent      string        `yaml:"user_agent" envconfig:"UPSTREAM_USER_AGENT"`
	HTTPTimeout    time.Duration `yaml:"http_timeout" envconfig:"UPSTREAM_HTTP_TIMEOUT"`
	// GuestToken pins a guest token instead of activating one.
	GuestToken string `yaml:"guest_token" envconfig:"UPSTREAM_GUEST_TOKEN"`
}

// RateLimitConfig holds per-client admission settings.
//
// Clients are keyed on the peer address. ClientIPHeader,
// when set, takes precedence; only set it behind a proxy that overwrites the
// header, such as CF-Connecting-IP behind Cloudflare.
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled" envconfig:"RATE_LIMIT_ENABLED"`
	Limit          int           `yaml:"limit" envconfig:"RATE_LIMIT"`
	Window         time.Duration `yaml:"window" envconfig:"RATE_LIMIT_WINDOW"`
	MinTTL         time.Duration `yaml:"min_ttl" envconfig:"RATE_LIMIT_MIN_TTL"`
	ClientIPHeader string        `yaml:"client_ip_header" envconfig:"RATE_LIMIT_CLIENT_IP_HEADER"`
	Backend        string        `yaml:"backend" envconfig:"RATE_LIMIT_BACKEND"`
	KeyPrefix      string        `yaml:"key_prefix" envconfig:"RATE_LIMIT_KEY_PREFIX"`
	SweepInterval  time.Duration `yaml:"sweep_interval" envconfig:"RATE_LIMIT_SWEEP_INTERVAL"`
}

// RedisConfig holds the shared counter store connection.
type RedisConfig struct {
	Addr        string        `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password    string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB          int           `yaml:"db" envconfig:"REDIS_DB"`
	DialTimeout time.Duration `yaml:"dial_timeout" envconfig:"REDIS_DIAL_TIMEOUT"`
}

// SQLiteConfig holds the local counter database.
type SQLiteConfig struct {
	Path string `yaml:"path" envconfig:"SQLITE_PATH"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
}

// Defaults returns the configuration used when neither the file nor the
// environment sets a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8787,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   60 * time.Second,
			RequestTimeout: 45 * time.Second,
		},
		Upstream: UpstreamConfig{
			HTTPTimeout: 15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Limit:         100,
			Window:        60 * time.Second,
			MinTTL:        60 * time.Second,
			Backend:       BackendMemory,
			KeyPrefix:     "rate:",
			SweepInterval: time.Minute,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: 5 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "/data/ratelimit.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from file and environment variables.
// Precedence is defaults, then the file, then environment variables that are set.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables. Fields carry no default tags, so
	// unset variables leave file values alone.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Upstream.HTTPTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_HTTP_TIMEOUT must be positive")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	if !c.RateLimit.Enabled {
		return nil
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be one of memory, redis, sqlite (got %q)", c.RateLimit.Backend)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel parses the configured level.
func (c *LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.Level)
	}
}
