package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models marketplace.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Store struct {
		Driver         string `yaml:"driver"`
		DSN            string `yaml:"dsn"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"store"`
	Auth struct {
		TokenTTLMinutes int `yaml:"token_ttl_minutes"`
	} `yaml:"auth"`
	Pagination struct {
		DefaultLimit int `yaml:"default_limit"`
		MaxLimit     int `yaml:"max_limit"`
	} `yaml:"pagination"`
	Accounts struct {
		SignupCoins map[string]int64 `yaml:"signup_coins"`
	} `yaml:"accounts"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Seed struct {
		AdminEmail string `yaml:"admin_email"`
	} `yaml:"seed"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with dae config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("config.store.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("config.store.driver must be 'sqlite' or 'postgres', got %q", c.Store.Driver)
	}
	if c.Store.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.store.timeout_seconds must be positive")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("config.auth.token_ttl_minutes must be positive")
	}
	if c.Pagination.DefaultLimit <= 0 {
		return fmt.Errorf("config.pagination.default_limit must be positive")
	}
	if c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return fmt.Errorf("config.pagination.max_limit must be >= default_limit")
	}
	for role, coins := range c.Accounts.SignupCoins {
		if role != "buyer" && role != "worker" {
			return fmt.Errorf("config.accounts.signup_coins has unknown role %s", role)
		}
		if coins < 0 {
			return fmt.Errorf("signup coins for %s must not be negative", role)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be one of debug, info, warn, error")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("config.log.format must be 'json' or 'text'")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// SignupCoins returns the coins credited to a new account of the given role.
func (c *Config) SignupCoins(role string) int64 {
	if c == nil || c.Accounts.SignupCoins == nil {
		return 0
	}
	return c.Accounts.SignupCoins[role]
}

// TokenTTL is the lifetime of issued bearer tokens.
func (c *Config) TokenTTL() time.Duration {
	if c == nil || c.Auth.TokenTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "marketplace.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys absent from
// the document keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1

store:
  driver: sqlite
  dsn: ""
  timeout_seconds: 5

auth:
  token_ttl_minutes: 1440

pagination:
  default_limit: 5
  max_limit: 50

accounts:
  signup_coins:
    worker: 10
    buyer: 50

log:
  level: info
  format: json

seed:
  admin_email: ""
`
