// Package config provides client and tooling configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds configuration values loaded from file or environment variables.
type Config struct {
	Env string `mapstructure:"APP_ENV"`

	APIBaseURL string `mapstructure:"API_BASE_URL"`
	APIPrefix  string `mapstructure:"API_PREFIX"`
	WSURL      string `mapstructure:"WS_URL"`
	WSPath     string `mapstructure:"WS_PATH"`
	ChatWSPath string `mapstructure:"CHAT_WS_PATH"`

	RequestTimeoutSeconds int `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	WSReconnectAttempts   int `mapstructure:"WS_RECONNECT_ATTEMPTS"`
	WSReconnectBaseDelay  int `mapstructure:"WS_RECONNECT_BASE_DELAY_MS"`

	SessionBackend  string `mapstructure:"SESSION_BACKEND"`
	SessionDSN      string `mapstructure:"SESSION_DSN"`
	SessionTTLHours int    `mapstructure:"SESSION_TTL_HOURS"`
	RedisURL        string `mapstructure:"REDIS_URL"`

	LogLevel        string  `mapstructure:"LOG_LEVEL"`
	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
	MetricsAddr     string  `mapstructure:"METRICS_ADDR"`

	MockPort  string `mapstructure:"MOCK_PORT"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	SmokeUserEmail    string `mapstructure:"SMOKE_USER_EMAIL"`
	SmokeUserPassword string `mapstructure:"SMOKE_USER_PASSWORD"`

	ImageMaxSide int `mapstructure:"IMAGE_MAX_SIDE"`
}

const defaultJWTSecret = "mock-secret-change-me"

// LoadConfig loads configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("API_BASE_URL", "http://localhost:8080")
	viper.SetDefault("API_PREFIX", "/api")
	viper.SetDefault("WS_URL", "")
	viper.SetDefault("WS_PATH", "/connect")
	viper.SetDefault("CHAT_WS_PATH", "/chat/ws")
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 10)
	viper.SetDefault("WS_RECONNECT_ATTEMPTS", 5)
	viper.SetDefault("WS_RECONNECT_BASE_DELAY_MS", 1000)
	viper.SetDefault("SESSION_BACKEND", "memory")
	viper.SetDefault("SESSION_DSN", "socialnet-session.db")
	viper.SetDefault("SESSION_TTL_HOURS", 24)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
	viper.SetDefault("METRICS_ADDR", "")
	viper.SetDefault("MOCK_PORT", "8080")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("SMOKE_USER_EMAIL", "alice@example.com")
	viper.SetDefault("SMOKE_USER_PASSWORD", "password123")
	viper.SetDefault("IMAGE_MAX_SIDE", 1024)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	c.APIPrefix = "/" + strings.Trim(strings.TrimSpace(c.APIPrefix), "/")
	if c.APIPrefix == "/" {
		c.APIPrefix = ""
	}
	c.SessionBackend = strings.ToLower(strings.TrimSpace(c.SessionBackend))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate ensures that required configuration values are present and well formed.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL scheme must be http or https, got %q", u.Scheme)
	}
	if c.WSReconnectAttempts < 0 {
		return errors.New("WS_RECONNECT_ATTEMPTS cannot be negative")
	}
	if c.WSReconnectBaseDelay < 0 {
		return errors.New("WS_RECONNECT_BASE_DELAY_MS cannot be negative")
	}

	switch c.SessionBackend {
	case "", "memory", "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction {
		if u.Scheme != "https" {
			log.Println("WARNING: API_BASE_URL is not https in production.")
		}
		if c.JWTSecret == defaultJWTSecret {
			log.Println("WARNING: JWT_SECRET is the mock default; only the mock server uses it.")
		}
	}

	return nil
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ReconnectBaseDelay returns the linear backoff step for websocket reconnects.
func (c *Config) ReconnectBaseDelay() time.Duration {
	return time.Duration(c.WSReconnectBaseDelay) * time.Millisecond
}

// SessionTTL returns how long a persisted session stays valid.
func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// APIURL joins the base URL, API prefix and path.
func (c *Config) APIURL(path string) string {
	return c.APIBaseURL + c.APIPrefix + "/" + strings.TrimLeft(path, "/")
}

// WebSocketURL derives the websocket endpoint for the given path. WS_URL wins
// when set, otherwise the scheme of API_BASE_URL is swapped to ws/wss.
func (c *Config) WebSocketURL(path string) string {
	base := strings.TrimRight(c.WSURL, "/")
	if base == "" {
		base = c.APIBaseURL
		switch {
		case strings.HasPrefix(base, "https://"):
			base = "wss://" + strings.TrimPrefix(base, "https://")
		case strings.HasPrefix(base, "http://"):
			base = "ws://" + strings.TrimPrefix(base, "http://")
		}
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

// Default returns a configuration populated with defaults only. Useful in tests
// and for tools that run without a config file.
func Default() *Config {
	c := &Config{
		Env:                   "development",
		APIBaseURL:            "http://localhost:8080",
		APIPrefix:             "/api",
		WSPath:                "/connect",
		ChatWSPath:            "/chat/ws",
		RequestTimeoutSeconds: 10,
		WSReconnectAttempts:   5,
		WSReconnectBaseDelay:  1000,
		SessionBackend:        "memory",
		SessionDSN:            "socialnet-session.db",
		SessionTTLHours:       24,
		RedisURL:              "localhost:6379",
		LogLevel:              "info",
		TracingExporter:       "stdout",
		TracingSampler:        1.0,
		MockPort:              "8080",
		JWTSecret:             defaultJWTSecret,
		SmokeUserEmail:        "alice@example.com",
		SmokeUserPassword:     "password123",
		ImageMaxSide:          1024,
	}
	return c
}
