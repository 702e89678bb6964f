package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type APIConfig struct {
	BaseURL   string        `yaml:"base_url"` // https://api.btcmap.org
	Timeout   time.Duration `yaml:"timeout"`  // per request
	UserAgent string        `yaml:"user_agent"`
}

type StateConfig struct {
	Backend  string `yaml:"backend"`   // file | redis
	Path     string `yaml:"path"`      // watermark file for the file backend
	RedisURL string `yaml:"redis_url"` // redis://host:6379/0
	RedisKey string `yaml:"redis_key"`
}

type PublishConfig struct {
	Command     string        `yaml:"command"` // noscl
	Args        []string      `yaml:"args"`    // prepended to the message
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"` // empty disables push
	Job            string `yaml:"job"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type Config struct {
	API     APIConfig     `yaml:"api"`
	State   StateConfig   `yaml:"state"`
	Publish PublishConfig `yaml:"publish"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML config. An empty path yields Default().
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "https://api.btcmap.org"
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "btcmap-bot"
	}
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.Path == "" {
		c.State.Path = ".last_execution_time"
	}
	if c.State.RedisKey == "" {
		c.State.RedisKey = "btcmap-bot:watermark"
	}
	if c.Publish.Command == "" {
		c.Publish.Command = "noscl"
	}
	if c.Publish.Command == "noscl" && c.Publish.Args == nil {
		c.Publish.Args = []string{"publish"}
	}
	if c.Publish.Timeout == 0 {
		c.Publish.Timeout = 30 * time.Second
	}
	if c.Publish.MaxAttempts <= 0 {
		c.Publish.MaxAttempts = 1
	}
	if c.Publish.Backoff == 0 {
		c.Publish.Backoff = time.Second
	}
	if c.Publish.MaxBackoff == 0 {
		c.Publish.MaxBackoff = 5 * time.Second
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "btcmap-bot"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	switch c.State.Backend {
	case "file":
	case "redis":
		if strings.TrimSpace(c.State.RedisURL) == "" {
			return errors.New("state.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown state backend: %s", c.State.Backend)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", c.Log.Format)
	}
	if c.API.Timeout < 0 || c.Publish.Timeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}
