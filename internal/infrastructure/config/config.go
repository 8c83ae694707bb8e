package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

// EnvPrefix namespaces environment variables
const EnvPrefix = "OFFSCREEN"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	WebView   WebViewConfig   `toml:"webview" yaml:"webview"`
	HTTP      HTTPConfig      `toml:"http" yaml:"http"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	CORS      CORSConfig      `toml:"cors" yaml:"cors"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" toml:"port" yaml:"port"`
	Host            string   `envconfig:"HOST" toml:"host" yaml:"host"`
	ShutdownTimeout Duration `envconfig:"SHUTDOWN_TIMEOUT" toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" yaml:"development"`
}

// WebViewConfig holds instance lifecycle settings.
type WebViewConfig struct {
	// HostOS overrides the detected operating system; empty means runtime.GOOS
	HostOS string `envconfig:"HOST_OS" toml:"host_os" yaml:"host_os"`
	// HostDescriptor is the secondary platform signal (device or OS descriptor)
	HostDescriptor       string   `envconfig:"HOST_DESCRIPTOR" toml:"host_descriptor" yaml:"host_descriptor"`
	WarmupDelay          Duration `envconfig:"WARMUP_DELAY" toml:"warmup_delay" yaml:"warmup_delay"`
	PreloadValidity      Duration `envconfig:"PRELOAD_VALIDITY" toml:"preload_validity" yaml:"preload_validity"`
	LoadTimeout          Duration `envconfig:"LOAD_TIMEOUT" toml:"load_timeout" yaml:"load_timeout"`
	ScriptTimeout        Duration `envconfig:"SCRIPT_TIMEOUT" toml:"script_timeout" yaml:"script_timeout"`
	StorePath            string   `envconfig:"STORE_PATH" toml:"store_path" yaml:"store_path"`
	UserAgent            string   `envconfig:"USER_AGENT" toml:"user_agent" yaml:"user_agent"`
	EventBuffer          int      `envconfig:"EVENT_BUFFER" toml:"event_buffer" yaml:"event_buffer"`
	ResponseCacheEntries int      `envconfig:"RESPONSE_CACHE_ENTRIES" toml:"response_cache_entries" yaml:"response_cache_entries"`
}

// HTTPConfig holds outbound fetch settings.
type HTTPConfig struct {
	Timeout      Duration `envconfig:"FETCH_TIMEOUT" toml:"timeout" yaml:"timeout"`
	RetryMax     int      `envconfig:"FETCH_RETRY_MAX" toml:"retry_max" yaml:"retry_max"`
	RetryWaitMin Duration `envconfig:"FETCH_RETRY_WAIT_MIN" toml:"retry_wait_min" yaml:"retry_wait_min"`
	RetryWaitMax Duration `envconfig:"FETCH_RETRY_WAIT_MAX" toml:"retry_wait_max" yaml:"retry_wait_max"`
	// RequestsPerSecond limits outbound fetches; 0 is unlimited
	RequestsPerSecond float64 `envconfig:"FETCH_RPS" toml:"requests_per_second" yaml:"requests_per_second"`
	MaxBodySize       int64   `envconfig:"FETCH_MAX_BODY" toml:"max_body_size" yaml:"max_body_size"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled" yaml:"enabled"`
}

// CORSConfig holds allowed origins.
type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ORIGINS" toml:"allow_origins" yaml:"allow_origins"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: D(10 * time.Second),
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		WebView: WebViewConfig{
			WarmupDelay:          D(time.Second),
			PreloadValidity:      D(time.Hour),
			LoadTimeout:          D(30 * time.Second),
			ScriptTimeout:        D(5 * time.Second),
			UserAgent:            "Mozilla/5.0 (compatible; Offscreen/1.0)",
			EventBuffer:          64,
			ResponseCacheEntries: 256,
		},
		HTTP: HTTPConfig{
			Timeout:      D(30 * time.Second),
			RetryMax:     3,
			RetryWaitMin: D(time.Second),
			RetryWaitMax: D(30 * time.Second),
			MaxBodySize:  10 * 1024 * 1024,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
		},
	}
}

// Load builds the configuration from defaults, the file at path (optional)
// and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs error
	if c.Server.Port == "" {
		errs = multierr.Append(errs, errors.New("server port is required"))
	}
	if c.WebView.PreloadValidity.Duration <= 0 {
		errs = multierr.Append(errs, errors.New("preload validity must be positive"))
	}
	if c.WebView.WarmupDelay.Duration < 0 {
		errs = multierr.Append(errs, errors.New("warmup delay must not be negative"))
	}
	if c.WebView.LoadTimeout.Duration < 0 || c.WebView.ScriptTimeout.Duration < 0 {
		errs = multierr.Append(errs, errors.New("timeouts must not be negative"))
	}
	if c.HTTP.RetryMax < 0 {
		errs = multierr.Append(errs, errors.New("fetch retry count must not be negative"))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		errs = multierr.Append(errs, errors.New("rate limit must be positive when enabled"))
	}
	if errs != nil {
		return fmt.Errorf("invalid config: %w", errs)
	}
	return nil
}
