package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where murald looks for its configuration.
const DefaultPath = "mural.yml"

// MuralConfig represents the top-level mural.yml configuration
type MuralConfig struct {
	Version  string        `yaml:"version"`
	Instance string        `yaml:"instance"`
	Redis    RedisConfig   `yaml:"redis"`
	API      APIConfig     `yaml:"api"`
	Social   *SocialConfig `yaml:"social,omitempty"`
	Events   *EventsConfig `yaml:"events,omitempty"`
	Log      LogConfig     `yaml:"log"`
}

// RedisConfig locates the ledger store
type RedisConfig struct {
	URL string `yaml:"url"` // redis://host:port/db
}

// APIConfig configures the HTTP API
type APIConfig struct {
	Listen       string        `yaml:"listen"`                // Default: ":8080"
	AdminToken   string        `yaml:"admin_token,omitempty"` // Enables POST /v1/admin/credit when set
	MaxClockSkew time.Duration `yaml:"max_clock_skew"`        // Tolerated signer clock drift, default 30s
	Timeout      time.Duration `yaml:"request_timeout"`       // Per-request deadline, default 10s
}

// SocialConfig configures the optional content-graph service
type SocialConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Namespace string        `yaml:"namespace"`
	Timeout   time.Duration `yaml:"timeout"`
}

// EventsConfig configures the optional AMQP event relay
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"` // Default: "mural.events"
}

// LogConfig configures logrus
type LogConfig struct {
	Level  string `yaml:"level"`  // logrus level name, default "info"
	Format string `yaml:"format"` // "json" or "text", default "json"
}

// Validate performs strict validation on the configuration and fills defaults
func (c *MuralConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		return fmt.Errorf("instance is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if _, err := redis.ParseURL(c.Redis.URL); err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}

	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
		return fmt.Errorf("invalid api.listen %q: %w", c.API.Listen, err)
	}
	if c.API.MaxClockSkew == 0 {
		c.API.MaxClockSkew = 30 * time.Second
	}
	if c.API.MaxClockSkew < 0 {
		return fmt.Errorf("api.max_clock_skew must be >= 0, got %s", c.API.MaxClockSkew)
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 10 * time.Second
	}

	if c.Social != nil {
		if err := c.Social.Validate(); err != nil {
			return err
		}
	}

	if c.Events != nil {
		if c.Events.AMQPURL == "" {
			return fmt.Errorf("events.amqp_url is required when events is configured")
		}
		u, err := url.Parse(c.Events.AMQPURL)
		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			return fmt.Errorf("invalid events.amqp_url: must be amqp:// or amqps://")
		}
		if c.Events.Exchange == "" {
			c.Events.Exchange = "mural.events"
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log.format: %s (must be 'json' or 'text')", c.Log.Format)
	}

	return nil
}

// Validate performs validation on the social section
func (s *SocialConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("social.base_url is required when social is configured")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid social.base_url: %s", s.BaseURL)
	}
	if s.Namespace == "" {
		s.Namespace = "mural"
	}
	if s.Timeout == 0 {
		s.Timeout = 5 * time.Second
	}
	if s.Timeout < 0 {
		return fmt.Errorf("social.timeout must be positive")
	}
	return nil
}

// RedisOptions returns client options for the configured Redis URL
func (c *MuralConfig) RedisOptions() (*redis.Options, error) {
	return redis.ParseURL(c.Redis.URL)
}

// NewLogger builds a logrus logger from the log section
func (c *MuralConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if c.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// applyEnv overrides file values with MURAL_* environment variables
func (c *MuralConfig) applyEnv() {
	if v := os.Getenv("MURAL_INSTANCE"); v != "" {
		c.Instance = v
	}
	if v := os.Getenv("MURAL_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("MURAL_API_LISTEN"); v != "" {
		c.API.Listen = v
	}
	if v := os.Getenv("MURAL_ADMIN_TOKEN"); v != "" {
		c.API.AdminToken = v
	}
	if v := os.Getenv("MURAL_SOCIAL_API_KEY"); v != "" && c.Social != nil {
		c.Social.APIKey = v
	}
	if v := os.Getenv("MURAL_AMQP_URL"); v != "" {
		if c.Events == nil {
			c.Events = &EventsConfig{}
		}
		c.Events.AMQPURL = v
	}
	if v := os.Getenv("MURAL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads mural.yml from the specified path, applies environment
// overrides and validates the result
func Load(path string) (*MuralConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config MuralConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
