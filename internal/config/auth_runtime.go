package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret  = "change-me-jwt-secret"
	defaultCookiePath = "/api/auth"
)

// Config is the process-wide runtime configuration. It is built once at
// startup and passed explicitly to the components that need it.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"dev"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8000"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:authserver.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"`

	JWTSecret    string        `env:"JWT_SECRET" envDefault:"change-me-jwt-secret"`
	JWTAccessTTL time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL   time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	BcryptCost   int           `env:"BCRYPT_COST" envDefault:"10"`

	// CookieSecureRaw is left empty to let the environment decide.
	CookieSecureRaw string `env:"COOKIE_SECURE"`
	CookieSecure    bool   `env:"-"`
	CookiePath      string `env:"COOKIE_PATH" envDefault:"/api/auth"`

	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return finish(cfg)
}

// LoadFrom parses configuration from an explicit variable set instead of the
// process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return finish(cfg)
}

// IsProduction reports whether the configured environment is prod-like.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func finish(cfg *Config) (*Config, error) {
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.CookiePath = strings.TrimSpace(cfg.CookiePath)

	if raw := strings.TrimSpace(cfg.CookieSecureRaw); raw != "" {
		cfg.CookieSecure = parseBool(raw)
	} else {
		cfg.CookieSecure = isProdLike(cfg.AppEnv)
	}

	origins := cfg.AllowedOrigins[:0]
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be > 0")
	}
	if cfg.CleanupInterval < 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be >= 0")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}

	if isProdLike(cfg.AppEnv) {
		if cfg.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func parseBool(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}
