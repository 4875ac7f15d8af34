package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammad-safakhou/learncatalog/scraper"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// LEARNCATALOG_SERVER_ADDRESS.
const EnvPrefix = "LEARNCATALOG"

// Config holds all configuration for the catalog MCP server
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	MCP     MCPConfig     `mapstructure:"mcp"`
	Session SessionConfig `mapstructure:"session"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	BodyLimit      string        `mapstructure:"body_limit"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	return nil
}

// MCPConfig describes what initialize advertises. The session TTL and the
// protocol version are fixed and not configurable.
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type SessionConfig struct {
	Store         string        `mapstructure:"store"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

func (s SessionConfig) Normalize() SessionConfig {
	s.Store = strings.ToLower(strings.TrimSpace(s.Store))
	if s.Store == "" {
		s.Store = StoreMemory
	}
	return s
}

func (s SessionConfig) Validate() error {
	switch s.Store {
	case StoreMemory:
	case StoreRedis:
		if err := s.Redis.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("session.store must be %q or %q, got %q", StoreMemory, StoreRedis, s.Store)
	}
	if s.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be > 0")
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Addr) == "" {
		return fmt.Errorf("session.redis.addr required when session.store is redis")
	}
	if r.DB < 0 {
		return fmt.Errorf("session.redis.db must not be negative")
	}
	return nil
}

// CatalogConfig points at the upstream catalog API.
type CatalogConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	DefaultLocale string        `mapstructure:"default_locale"`
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func (c CatalogConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("catalog.base_url must be an absolute http(s) url, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be > 0")
	}
	return nil
}

// Fetcher kinds for scraper.fetcher.
const (
	FetcherHTTP     = "http"
	FetcherChromedp = "chromedp"
)

// ScraperConfig tunes the unit page pipeline. Concurrency may only lower the
// fetch gate below scraper.MaxInFlight.
type ScraperConfig struct {
	Fetcher      string           `mapstructure:"fetcher"`
	Concurrency  int              `mapstructure:"concurrency"`
	UserAgent    string           `mapstructure:"user_agent"`
	Timeout      time.Duration    `mapstructure:"timeout"`
	MaxBodyBytes int64            `mapstructure:"max_body_bytes"`
	Rate         RateConfig       `mapstructure:"rate"`
	Hosts        HostPolicyConfig `mapstructure:"hosts"`
}

// RateConfig is a per-host politeness budget. Zero requests disables it.
type RateConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

func (s ScraperConfig) Normalize() ScraperConfig {
	s.Fetcher = strings.ToLower(strings.TrimSpace(s.Fetcher))
	s.Hosts = s.Hosts.Normalize()
	return s
}

func (s ScraperConfig) Validate() error {
	if s.Fetcher != FetcherHTTP && s.Fetcher != FetcherChromedp {
		return fmt.Errorf("scraper.fetcher must be %q or %q, got %q", FetcherHTTP, FetcherChromedp, s.Fetcher)
	}
	if s.Concurrency < 1 || s.Concurrency > scraper.MaxInFlight {
		return fmt.Errorf("scraper.concurrency must be between 1 and %d, got %d", scraper.MaxInFlight, s.Concurrency)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("scraper.timeout must be > 0")
	}
	if s.Rate.Requests > 0 && s.Rate.Window <= 0 {
		return fmt.Errorf("scraper.rate.window must be > 0 when scraper.rate.requests is set")
	}
	return s.Hosts.Validate()
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.body_limit", "4M")

	v.SetDefault("mcp.server_name", "mcp-learn-catalog")
	v.SetDefault("mcp.server_version", "2.0.0")

	v.SetDefault("session.store", StoreMemory)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.redis.addr", "")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.key_prefix", "learncatalog:")
	v.SetDefault("session.redis.timeout", 5*time.Second)

	v.SetDefault("catalog.base_url", "https://learn.microsoft.com/api/catalog/")
	v.SetDefault("catalog.default_locale", "en-us")
	v.SetDefault("catalog.user_agent", "mcp-learn-catalog/2.0")
	v.SetDefault("catalog.timeout", 30*time.Second)

	v.SetDefault("scraper.fetcher", FetcherHTTP)
	v.SetDefault("scraper.concurrency", scraper.MaxInFlight)
	v.SetDefault("scraper.user_agent", "mcp-learn-catalog-scraper/1.0")
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("scraper.max_body_bytes", 5*1024*1024)
	v.SetDefault("scraper.rate.requests", 0)
	v.SetDefault("scraper.rate.window", time.Second)
	v.SetDefault("scraper.hosts.allow", []string{"learn.microsoft.com"})
	v.SetDefault("scraper.hosts.disallow", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// LoadConfig reads config.{json,yaml,toml} from path, or from the usual
// locations when path is empty, then applies LEARNCATALOG_* overrides. A
// missing file is fine when path is empty; defaults and env cover everything.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config") // name of config file (without extension)
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Session = cfg.Session.Normalize()
	cfg.Scraper = cfg.Scraper.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.Server.Validate,
		c.Session.Validate,
		c.Catalog.Validate,
		c.Scraper.Validate,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}
