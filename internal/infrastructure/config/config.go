// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Metrics backends.
const (
	BackendOpenSearch = "opensearch"
	BackendSynthetic  = "synthetic"
)

// Rate limit stores.
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for the service.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Directory  DirectoryConfig  `mapstructure:"directory"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Synthetic  SyntheticConfig  `mapstructure:"synthetic"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"`
}

// IsDevelopment reports whether the service runs in a development environment.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "local"
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the HTTP listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// DirectoryConfig holds route directory configuration.
type DirectoryConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	RoutesPath   string        `mapstructure:"routes_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxFailures  int           `mapstructure:"max_failures"`
	BreakerReset time.Duration `mapstructure:"breaker_reset"`
}

// OpenSearchConfig holds metrics backend configuration.
type OpenSearchConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Index    string        `mapstructure:"index"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds audit metrics configuration.
type MetricsConfig struct {
	// Backend is "opensearch" or "synthetic".
	Backend        string        `mapstructure:"backend"`
	Lookback       time.Duration `mapstructure:"lookback"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// SyntheticConfig holds synthetic series configuration.
type SyntheticConfig struct {
	Seed            int64   `mapstructure:"seed"`
	BaseSuccessRate float64 `mapstructure:"base_success_rate"`
}

// AuthConfig holds caller identity configuration.
type AuthConfig struct {
	// ClaimsHeader carries claims verified by an upstream authorizer as JSON.
	ClaimsHeader string `mapstructure:"claims_header"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Store    string        `mapstructure:"store"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is believed.
	// Empty keys clients on the socket address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// TrustedPrefixes parses TrustedProxies. A bare IP becomes a single-address prefix.
func (c RateLimitConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if strings.Contains(value, "/") {
			p, err := netip.ParsePrefix(value)
			if err != nil {
				return nil, fmt.Errorf("%w: rate_limit.trusted_proxies: %w", ErrInvalidConfig, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, fmt.Errorf("%w: rate_limit.trusted_proxies: %w", ErrInvalidConfig, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	KeyPrefix   string        `mapstructure:"key_prefix"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	IOTimeout   time.Duration `mapstructure:"io_timeout"`
}

// Address returns the Redis address.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`

	// SampleRatio is the share of new traces sampled. Values outside (0,1) sample all.
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	PrettyJSON bool   `mapstructure:"pretty_json"`
}

// Load reads configuration from file and environment variables.
// An empty configPath searches for config.yaml in . and ./config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Config file is optional, env vars can override
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Directory.BaseURL == "" {
		return fmt.Errorf("%w: directory.base_url is required", ErrInvalidConfig)
	}
	switch c.Metrics.Backend {
	case BackendOpenSearch:
		if c.OpenSearch.BaseURL == "" || c.OpenSearch.Index == "" {
			return fmt.Errorf("%w: opensearch.base_url and opensearch.index are required", ErrInvalidConfig)
		}
	case BackendSynthetic:
	default:
		return fmt.Errorf("%w: metrics.backend must be %q or %q", ErrInvalidConfig, BackendOpenSearch, BackendSynthetic)
	}
	if c.Synthetic.BaseSuccessRate < 0 || c.Synthetic.BaseSuccessRate > 1 {
		return fmt.Errorf("%w: synthetic.base_success_rate must be within [0,1]", ErrInvalidConfig)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("%w: rate_limit.requests and rate_limit.window must be positive", ErrInvalidConfig)
		}
		if c.RateLimit.Store != RateLimitStoreMemory && c.RateLimit.Store != RateLimitStoreRedis {
			return fmt.Errorf("%w: rate_limit.store must be %q or %q", ErrInvalidConfig, RateLimitStoreMemory, RateLimitStoreRedis)
		}
		if _, err := c.RateLimit.TrustedPrefixes(); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "winking-owl-audits-api")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", "development")

	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.max_age", 86400)

	// Directory defaults
	v.SetDefault("directory.base_url", "http://localhost:3000")
	v.SetDefault("directory.routes_path", "/route-service/route")
	v.SetDefault("directory.timeout", 10*time.Second)
	v.SetDefault("directory.max_failures", 5)
	v.SetDefault("directory.breaker_reset", 30*time.Second)

	// OpenSearch defaults
	v.SetDefault("opensearch.base_url", "http://localhost:9200")
	v.SetDefault("opensearch.index", "route-executions")
	v.SetDefault("opensearch.username", "")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.timeout", 5*time.Second)

	// Metrics defaults
	v.SetDefault("metrics.backend", BackendOpenSearch)
	v.SetDefault("metrics.lookback", 24*time.Hour)
	v.SetDefault("metrics.max_concurrency", 16)

	// Synthetic defaults
	v.SetDefault("synthetic.seed", 0)
	v.SetDefault("synthetic.base_success_rate", 0.0)

	// Auth defaults
	v.SetDefault("auth.claims_header", "X-Authorizer-Claims")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.store", RateLimitStoreMemory)
	v.SetDefault("rate_limit.requests", 120)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.trusted_proxies", []string{})

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "winking-owl:")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.io_timeout", "3s")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "winking-owl-audits-api")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.pretty_json", false)
}

func bindEnvVars(v *viper.Viper) {
	envBindings := []struct {
		key     string
		envName string
	}{
		// Directory
		{"directory.base_url", "DIRECTORY_BASE_URL"},
		// OpenSearch
		{"opensearch.base_url", "OPENSEARCH_BASE_URL"},
		{"opensearch.index", "OPENSEARCH_INDEX"},
		{"opensearch.username", "OPENSEARCH_USERNAME"},
		{"opensearch.password", "OPENSEARCH_PASSWORD"},
		// Metrics
		{"metrics.backend", "METRICS_BACKEND"},
		{"synthetic.seed", "SYNTHETIC_SEED"},
		// Redis
		{"redis.host", "REDIS_HOST"},
		{"redis.port", "REDIS_PORT"},
		{"redis.password", "REDIS_PASSWORD"},
		{"rate_limit.store", "RATE_LIMIT_STORE"},
		{"rate_limit.trusted_proxies", "RATE_LIMIT_TRUSTED_PROXIES"},
		// Tracing
		{"tracing.enabled", "TRACING_ENABLED"},
		{"tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT"},
		{"tracing.sample_ratio", "TRACING_SAMPLE_RATIO"},
		// App
		{"app.env", "APP_ENV"},
		{"server.http_port", "PORT"},
		{"logger.level", "LOG_LEVEL"},
	}

	for _, binding := range envBindings {
		if err := v.BindEnv(binding.key, binding.envName); err != nil {
			fmt.Printf("Warning: failed to bind env %s: %v\n", binding.envName, err)
		}
	}
}
