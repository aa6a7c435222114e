package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/tutoria/dashboard/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	API           APIConfig           `yaml:"api"`
	Session       SessionConfig       `yaml:"session"`
	Authz         AuthzConfig         `yaml:"authz"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the dashboard HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// APIConfig locates the backends
type APIConfig struct {
	ManagementURL      string        `yaml:"management_url"`
	AuthURL            string        `yaml:"auth_url"`
	AIURL              string        `yaml:"ai_url"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxRefreshFailures int           `yaml:"max_refresh_failures"`
}

// SessionConfig selects where the session is persisted and how it is kept
// alive
type SessionConfig struct {
	// Storage is one of file, memory, redis, sqlite
	Storage     string `yaml:"storage"`
	Path        string `yaml:"path"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`

	RefreshEnabled  bool   `yaml:"refresh_enabled"`
	RefreshSchedule string `yaml:"refresh_schedule"`

	// Login attempts allowed per client per minute, and burst
	LoginRateLimit int `yaml:"login_rate_limit"`
	LoginBurst     int `yaml:"login_burst"`
}

// AuthzConfig tunes client-side authorization
type AuthzConfig struct {
	// PageDefaultDeny denies paths without a page rule
	PageDefaultDeny bool `yaml:"page_default_deny"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// TracingEndpoint is the OTLP gRPC collector; empty disables tracing
	TracingEndpoint    string  `yaml:"tracing_endpoint"`
	TracingInsecure    bool    `yaml:"tracing_insecure"`
	TracingSampleRatio float64 `yaml:"tracing_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            "3000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		API: APIConfig{
			ManagementURL:      "http://localhost:5001/api",
			AuthURL:            "http://localhost:5001/api",
			AIURL:              "http://localhost:5002",
			Timeout:            30 * time.Second,
			MaxRefreshFailures: 3,
		},
		Session: SessionConfig{
			Storage:         "file",
			RedisPrefix:     "tutoria:session",
			RefreshEnabled:  true,
			RefreshSchedule: "@every 45m",
			LoginRateLimit:  10,
			LoginBurst:      5,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			TracingSampleRatio: 1,
		},
	}
}

// LoadConfig loads configuration from the file named by TUTORIA_CONFIG, if
// any, and the environment
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("TUTORIA_CONFIG"))
}

// Load builds the configuration from defaults, then the YAML file at path
// when path is not empty, then environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields whose variables are set. The NEXT_PUBLIC_ names
// of the web dashboard are honoured as fallbacks for the backend URLs.
func (c *Config) applyEnv() {
	setString(&c.Server.Host, "TUTORIA_HOST")
	setString(&c.Server.Port, "TUTORIA_PORT")
	setDuration(&c.Server.ReadTimeout, "TUTORIA_READ_TIMEOUT")
	setDuration(&c.Server.WriteTimeout, "TUTORIA_WRITE_TIMEOUT")
	setDuration(&c.Server.IdleTimeout, "TUTORIA_IDLE_TIMEOUT")
	setDuration(&c.Server.ShutdownTimeout, "TUTORIA_SHUTDOWN_TIMEOUT")

	setString(&c.API.ManagementURL, "TUTORIA_API_URL", "NEXT_PUBLIC_API_URL")
	setString(&c.API.AuthURL, "TUTORIA_AUTH_API_URL", "NEXT_PUBLIC_AUTH_API_URL")
	setString(&c.API.AIURL, "TUTORIA_AI_API_URL", "NEXT_PUBLIC_AI_API_URL")
	setDuration(&c.API.Timeout, "TUTORIA_API_TIMEOUT")
	setInt(&c.API.MaxRefreshFailures, "TUTORIA_MAX_REFRESH_FAILURES")

	setString(&c.Session.Storage, "TUTORIA_SESSION_STORAGE")
	setString(&c.Session.Path, "TUTORIA_SESSION_PATH")
	setString(&c.Session.RedisURL, "TUTORIA_REDIS_URL")
	setString(&c.Session.RedisPrefix, "TUTORIA_REDIS_PREFIX")
	setBool(&c.Session.RefreshEnabled, "TUTORIA_REFRESH_ENABLED")
	setString(&c.Session.RefreshSchedule, "TUTORIA_REFRESH_SCHEDULE")
	setInt(&c.Session.LoginRateLimit, "TUTORIA_LOGIN_RATE_LIMIT")
	setInt(&c.Session.LoginBurst, "TUTORIA_LOGIN_BURST")

	setBool(&c.Authz.PageDefaultDeny, "TUTORIA_PAGE_DEFAULT_DENY")

	setString(&c.Observability.LogLevel, "TUTORIA_LOG_LEVEL")
	setBool(&c.Observability.MetricsEnabled, "TUTORIA_METRICS_ENABLED")
	setString(&c.Observability.TracingEndpoint, "TUTORIA_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&c.Observability.TracingInsecure, "TUTORIA_OTLP_INSECURE")
	setFloat(&c.Observability.TracingSampleRatio, "TUTORIA_TRACE_SAMPLE_RATIO")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}

	for name, raw := range map[string]string{
		"management API URL": c.API.ManagementURL,
		"auth API URL":       c.API.AuthURL,
		"AI API URL":         c.API.AIURL,
	} {
		if err := validateURL(raw, "http", "https"); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}
	if c.API.MaxRefreshFailures < 1 {
		errs = append(errs, errors.New("max refresh failures must be at least 1"))
	}

	switch c.Session.Storage {
	case "file", "memory", "sqlite":
	case "redis":
		if err := validateURL(c.Session.RedisURL, "redis", "rediss"); err != nil {
			errs = append(errs, fmt.Errorf("invalid redis URL: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid session storage: %q (must be file, memory, redis, or sqlite)", c.Session.Storage))
	}
	if c.Session.RefreshEnabled {
		if _, err := cron.ParseStandard(c.Session.RefreshSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid refresh schedule %q: %w", c.Session.RefreshSchedule, err))
		}
	}
	if c.Session.LoginRateLimit < 1 || c.Session.LoginBurst < 1 {
		errs = append(errs, errors.New("login rate limit and burst must be at least 1"))
	}
	if r := c.Observability.TracingSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("trace sample ratio %v must be between 0 and 1", r))
	}

	return errors.Join(errs...)
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be an absolute %s URL", raw, strings.Join(schemes, " or "))
}

// lookupEnv returns the first non-empty variable among keys
func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value, true
		}
	}
	return "", false
}

func setString(dst *string, keys ...string) {
	if value, ok := lookupEnv(keys...); ok {
		*dst = value
	}
}

func setBool(dst *bool, keys ...string) {
	if value, ok := lookupEnv(keys...); ok {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setInt(dst *int, keys ...string) {
	if value, ok := lookupEnv(keys...); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			*dst = intVal
		}
	}
}

func setFloat(dst *float64, keys ...string) {
	if value, ok := lookupEnv(keys...); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, keys ...string) {
	if value, ok := lookupEnv(keys...); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			*dst = duration
		}
	}
}
