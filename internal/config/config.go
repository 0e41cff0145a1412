// Package config provides configuration management for the croit Ceph MCP server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigPath is where container deployments mount the config file.
const DefaultConfigPath = "/config/config.json"

// Default ports used when the host URL carries none.
const (
	DefaultHTTPPort  = 8080
	DefaultHTTPSPort = 443
)

// Config holds all configuration for the MCP server
type Config struct {
	// croit cluster
	Host     string `mapstructure:"host"`
	APIToken string `mapstructure:"api_token"` // #nosec G117 -- masked by Redact
	LogPort  int    `mapstructure:"log_port"`  // 0 means the port of Host

	// HTTP Client Configuration
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryWaitMin    time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax    time.Duration `mapstructure:"retry_wait_max"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout"`

	// Rate Limiting
	RateLimit       int  `mapstructure:"rate_limit"`       // requests per second
	RateLimitBurst  int  `mapstructure:"rate_limit_burst"` // burst size
	EnableRateLimit bool `mapstructure:"enable_rate_limit"`

	// Security
	TLSVerify bool `mapstructure:"tls_verify"`

	// Response cache and drill-down store
	CacheMaxEntries      int           `mapstructure:"cache_max_entries"`
	CacheDefaultTTL      time.Duration `mapstructure:"cache_default_ttl"`
	StoreMaxEntries      int           `mapstructure:"store_max_entries"`
	StoreTTL             time.Duration `mapstructure:"store_ttl"`
	CompressionThreshold int           `mapstructure:"compression_threshold"`

	// Log search
	StreamSessionTimeout time.Duration `mapstructure:"stream_session_timeout"`
	StreamMessageTimeout time.Duration `mapstructure:"stream_message_timeout"`
	LogSearchTimeout     time.Duration `mapstructure:"log_search_timeout"`

	// Tool surface, normally set through CLI flags
	EndpointsAsTools    bool `mapstructure:"endpoints_as_tools"`
	ResolveReferences   bool `mapstructure:"resolve_references"`
	OfferWholeSpec      bool `mapstructure:"offer_whole_spec"`
	EnableCategoryTools bool `mapstructure:"enable_category_tools"`
	EnableLogTools      bool `mapstructure:"enable_log_tools"`

	// Observability
	EnableTracing     bool   `mapstructure:"enable_tracing"`
	EnableAuditLog    bool   `mapstructure:"enable_audit_log"`
	MetricsEndpoint   bool   `mapstructure:"metrics_endpoint"`
	HealthPort        int    `mapstructure:"health_port"` // 0 disables the health server
	HealthBindAddress string `mapstructure:"health_bind_address"`

	// Logging
	LogLevel          string `mapstructure:"log_level"`
	LogFormat         string `mapstructure:"log_format"` // json or console
	LogFile           string `mapstructure:"log_file"`
	LogFileMaxSizeMB  int    `mapstructure:"log_file_max_size_mb"`
	LogFileMaxBackups int    `mapstructure:"log_file_max_backups"`
	LogFileMaxAgeDays int    `mapstructure:"log_file_max_age_days"`
}

// Defaults returns a configuration with every default applied.
func Defaults() *Config {
	return &Config{
		Timeout:              30 * time.Second,
		MaxRetries:           3,
		RetryWaitMin:         1 * time.Second,
		RetryWaitMax:         30 * time.Second,
		MaxIdleConns:         10,
		IdleConnTimeout:      90 * time.Second,
		RateLimit:            100,
		RateLimitBurst:       20,
		EnableRateLimit:      true,
		TLSVerify:            true,
		CacheMaxEntries:      100,
		CacheDefaultTTL:      5 * time.Minute,
		StoreMaxEntries:      50,
		StoreTTL:             30 * time.Minute,
		CompressionThreshold: 10 * 1024,
		StreamSessionTimeout: 30 * time.Second,
		StreamMessageTimeout: 5 * time.Second,
		LogSearchTimeout:     90 * time.Second,
		ResolveReferences:    true,
		EnableCategoryTools:  true,
		EnableLogTools:       true,
		EnableTracing:        false,
		EnableAuditLog:       true,
		MetricsEndpoint:      false,
		HealthBindAddress:    "127.0.0.1",
		LogLevel:             "info",
		LogFormat:            "json",
		LogFileMaxSizeMB:     50,
		LogFileMaxBackups:    3,
		LogFileMaxAgeDays:    14,
	}
}

// Load configuration from defaults, the optional config file and environment
// variables, in that order of increasing precedence.
func Load() (*Config, error) {
	cfg := Defaults()

	path := os.Getenv("CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultConfigPath
	}

	if err := loadFromFile(cfg, path, explicit); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Environment variables take precedence
	loadFromEnv(cfg)
	cfg.Host = strings.TrimRight(cfg.Host, "/")

	return cfg, nil
}

// loadFromFile merges a JSON, YAML or TOML file into cfg. A missing file is
// only an error when it was requested explicitly through CONFIG_FILE.
func loadFromFile(cfg *Config, path string, required bool) error {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid file path: path traversal detected")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(cleanPath)
	if filepath.Ext(cleanPath) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Unmarshal only overwrites keys present in the file
	return v.Unmarshal(cfg)
}

func loadFromEnv(cfg *Config) {
	setString(&cfg.Host, "CROIT_HOST")
	setString(&cfg.APIToken, "CROIT_API_TOKEN")
	setInt(&cfg.LogPort, "CROIT_LOG_PORT")

	setDuration(&cfg.Timeout, "CROIT_TIMEOUT")
	setInt(&cfg.MaxRetries, "CROIT_MAX_RETRIES")
	setInt(&cfg.RateLimit, "CROIT_RATE_LIMIT")
	setInt(&cfg.RateLimitBurst, "CROIT_RATE_LIMIT_BURST")
	setBool(&cfg.EnableRateLimit, "CROIT_ENABLE_RATE_LIMIT")
	setBool(&cfg.TLSVerify, "TLS_VERIFY")

	setInt(&cfg.CacheMaxEntries, "CACHE_MAX_ENTRIES")
	setDuration(&cfg.CacheDefaultTTL, "CACHE_DEFAULT_TTL")
	setInt(&cfg.StoreMaxEntries, "RESPONSE_STORE_MAX_ENTRIES")
	setDuration(&cfg.StoreTTL, "RESPONSE_STORE_TTL")
	setInt(&cfg.CompressionThreshold, "COMPRESSION_THRESHOLD")

	setDuration(&cfg.StreamSessionTimeout, "LOG_STREAM_SESSION_TIMEOUT")
	setDuration(&cfg.StreamMessageTimeout, "LOG_STREAM_MESSAGE_TIMEOUT")
	setDuration(&cfg.LogSearchTimeout, "LOG_SEARCH_TIMEOUT")

	setBool(&cfg.EnableTracing, "ENABLE_TRACING")
	setBool(&cfg.EnableAuditLog, "ENABLE_AUDIT_LOG")
	setBool(&cfg.MetricsEndpoint, "METRICS_ENDPOINT")
	setInt(&cfg.HealthPort, "HEALTH_PORT")
	setString(&cfg.HealthBindAddress, "HEALTH_BIND_ADDRESS")

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.LogFile, "LOG_FILE")
	setInt(&cfg.LogFileMaxSizeMB, "LOG_FILE_MAX_SIZE_MB")
	setInt(&cfg.LogFileMaxBackups, "LOG_FILE_MAX_BACKUPS")
	setInt(&cfg.LogFileMaxAgeDays, "LOG_FILE_MAX_AGE_DAYS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("CROIT_HOST is required")
	}
	if c.APIToken == "" {
		return errors.New("CROIT_API_TOKEN is required")
	}
	if _, err := ParseHost(c.Host); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must be non-negative")
	}
	if c.RateLimit <= 0 && c.EnableRateLimit {
		return errors.New("rate_limit must be positive when rate limiting is enabled")
	}
	if c.CacheMaxEntries <= 0 || c.StoreMaxEntries <= 0 {
		return errors.New("cache and response store sizes must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// Endpoint is the parsed form of the configured host.
type Endpoint struct {
	Scheme   string
	Hostname string
	Port     int
	UseTLS   bool
}

// BaseURL returns scheme://hostname:port.
func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", e.Scheme, e.Hostname, e.Port)
}

// WebSocketScheme returns wss for TLS endpoints and ws otherwise.
func (e Endpoint) WebSocketScheme() string {
	if e.UseTLS {
		return "wss"
	}
	return "ws"
}

// ParseHost splits a host URL into its parts. A value without a scheme is
// treated as a plain http hostname.
func ParseHost(host string) (Endpoint, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return Endpoint{}, errors.New("host is empty")
	}

	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		return Endpoint{Scheme: "http", Hostname: host, Port: DefaultHTTPPort}, nil
	}

	u, err := url.Parse(host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid host %q: %w", host, err)
	}

	ep := Endpoint{Scheme: u.Scheme, Hostname: u.Hostname(), UseTLS: u.Scheme == "https"}
	if ep.Hostname == "" {
		return Endpoint{}, fmt.Errorf("invalid host %q: missing hostname", host)
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid port in host %q: %w", host, err)
		}
		ep.Port = port
	} else if ep.UseTLS {
		ep.Port = DefaultHTTPSPort
	} else {
		ep.Port = DefaultHTTPPort
	}
	return ep, nil
}

// Endpoint returns the parsed host, falling back to the raw value on error.
func (c *Config) Endpoint() Endpoint {
	ep, err := ParseHost(c.Host)
	if err != nil {
		return Endpoint{Scheme: "http", Hostname: c.Host, Port: DefaultHTTPPort}
	}
	return ep
}

// LogEndpoint returns the endpoint of the log backend, which shares the
// cluster host but may listen on another port.
func (c *Config) LogEndpoint() Endpoint {
	ep := c.Endpoint()
	if c.LogPort > 0 {
		ep.Port = c.LogPort
	}
	return ep
}

// Redact returns a copy of the config with sensitive data removed
func (c *Config) Redact() *Config {
	redacted := *c
	redacted.APIToken = MaskAPIKey(redacted.APIToken)
	if redacted.APIToken == "***" {
		redacted.APIToken = "***REDACTED***"
	}
	return &redacted
}

// MaskAPIKey returns a masked version of an API key for safe logging
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
}
