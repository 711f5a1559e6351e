// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
// Millisecond- and second-valued knobs mirror the upstream-facing contract and
// are stored as integers; duration accessors convert them.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Host   string `env:"HOST" envDefault:"0.0.0.0"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// Upstream credential pool. Order defines credential priority.
	APIKeys  []string `env:"OPENWEATHER_API_KEYS" envSeparator:","`
	AppIDKey string   `env:"APP_ID_KEY"`

	OpenWeatherBaseURL string `env:"OPENWEATHER_BASE_URL" envDefault:"https://api.openweathermap.org"`

	// Per-credential per-day quota and upstream call behavior.
	DailyLimit   int64 `env:"API_DAILY_LIMIT" envDefault:"1000"`
	APITimeoutMS int   `env:"API_TIMEOUT" envDefault:"10000"`
	RetryCount   int   `env:"API_RETRY_COUNT" envDefault:"3"`
	RetryDelayMS int   `env:"API_RETRY_DELAY" envDefault:"1000"`

	// Result cache.
	CacheEnabled bool `env:"ENABLE_CACHE" envDefault:"true"`
	CacheTTLSec  int  `env:"CACHE_TTL" envDefault:"300"`
	CacheMaxKeys int  `env:"CACHE_MAX_KEYS" envDefault:"10000"`

	// Ledger backend.
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// DayKeyTimezone controls the zone in which daily counters roll over.
	// "local" (default) uses the server zone; any IANA name or "utc" works.
	DayKeyTimezone string `env:"DAY_KEY_TIMEZONE" envDefault:"local"`

	// Client-facing HTTP surface.
	RateLimitMax       int    `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindowSec int    `env:"RATE_LIMIT_WINDOW" envDefault:"60"`
	CORSOrigin         string `env:"CORS_ORIGIN" envDefault:"*"`
	KeepAliveTimeoutMS int    `env:"KEEPALIVE_TIMEOUT" envDefault:"65000"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"openweather-proxy"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the required keys the server cannot run without.
func (c Config) Validate() error {
	if len(c.Keys()) == 0 {
		return fmt.Errorf("op=config.Validate: OPENWEATHER_API_KEYS is required")
	}
	if c.AppIDKey == "" {
		return fmt.Errorf("op=config.Validate: APP_ID_KEY is required")
	}
	if _, err := c.DayKeyLocation(); err != nil {
		return fmt.Errorf("op=config.Validate: %w", err)
	}
	return nil
}

// Keys returns the configured secrets with blanks dropped, preserving order.
func (c Config) Keys() []string {
	out := make([]string, 0, len(c.APIKeys))
	for _, k := range c.APIKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// APITimeout is the per-attempt upstream request timeout.
func (c Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutMS) * time.Millisecond
}

// RetryDelay is the base backoff delay; attempt a sleeps RetryDelay × a.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// CacheTTL is the lifetime of one cached response body.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// RateLimitWindow is the per-IP rate limit window.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSec) * time.Second
}

// KeepAliveTimeout bounds idle keep-alive connections on the listener.
func (c Config) KeepAliveTimeout() time.Duration {
	return time.Duration(c.KeepAliveTimeoutMS) * time.Millisecond
}

// DayKeyLocation resolves DayKeyTimezone to a *time.Location.
func (c Config) DayKeyLocation() (*time.Location, error) {
	switch strings.ToLower(c.DayKeyTimezone) {
	case "", "local":
		return time.Local, nil
	case "utc":
		return time.UTC, nil
	default:
		loc, err := time.LoadLocation(c.DayKeyTimezone)
		if err != nil {
			return nil, fmt.Errorf("invalid DAY_KEY_TIMEZONE %q: %w", c.DayKeyTimezone, err)
		}
		return loc, nil
	}
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }
