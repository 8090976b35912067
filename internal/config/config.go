// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env            string `mapstructure:"APP_ENV"`
	Port           string `mapstructure:"PORT"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	RedisURL       string `mapstructure:"REDIS_URL"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBPath                   string `mapstructure:"DB_PATH"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	MoltsPerPage         int    `mapstructure:"MOLTS_PER_PAGE"`
	MoltCharLimit        int    `mapstructure:"MOLT_CHAR_LIMIT"`
	RegistrationEnabled  bool   `mapstructure:"REGISTRATION_ENABLED"`
	FeaturedCrabUsername string `mapstructure:"FEATURED_CRAB_USERNAME"`
	FeaturedMoltID       uint   `mapstructure:"FEATURED_MOLT_ID"`
	TrendingWindowHours  int    `mapstructure:"TRENDING_WINDOW_HOURS"`
	TrendingCacheSeconds int    `mapstructure:"TRENDING_CACHE_SECONDS"`

	APIMaxDeveloperKeys int `mapstructure:"API_MAX_DEVELOPER_KEYS"`
	APIMaxAccessTokens  int `mapstructure:"API_MAX_ACCESS_TOKENS"`

	CardLockDir         string  `mapstructure:"CARD_LOCK_DIR"`
	CardFetchTimeoutSec int     `mapstructure:"CARD_FETCH_TIMEOUT_SECONDS"`
	CardFetchRPS        float64 `mapstructure:"CARD_FETCH_RPS"`
	CardUserAgent       string  `mapstructure:"CARD_USER_AGENT"`
	CardBreakerFailures int     `mapstructure:"CARD_BREAKER_FAILURES"`

	TracingEnabled bool   `mapstructure:"TRACING_ENABLED"`
	OTLPEndpoint   string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from .env, config files and
// environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
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
		slog.Info("Loaded profile-specific configuration", "file", "config."+env+".yml")
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
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_PATH", "crabber.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "crabber")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	viper.SetDefault("MOLTS_PER_PAGE", 20)
	viper.SetDefault("MOLT_CHAR_LIMIT", 240)
	viper.SetDefault("REGISTRATION_ENABLED", true)
	viper.SetDefault("FEATURED_CRAB_USERNAME", "")
	viper.SetDefault("FEATURED_MOLT_ID", 0)
	viper.SetDefault("TRENDING_WINDOW_HOURS", 24*7)
	viper.SetDefault("TRENDING_CACHE_SECONDS", 60)

	viper.SetDefault("API_MAX_DEVELOPER_KEYS", 5)
	viper.SetDefault("API_MAX_ACCESS_TOKENS", 5)

	viper.SetDefault("CARD_LOCK_DIR", ".")
	viper.SetDefault("CARD_FETCH_TIMEOUT_SECONDS", 5)
	viper.SetDefault("CARD_FETCH_RPS", 2.0)
	viper.SetDefault("CARD_USER_AGENT", "CrabberCardBot/1.0")
	viper.SetDefault("CARD_BREAKER_FAILURES", 10)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// CardFetchTimeout is the per-URL fetch deadline.
func (c *Config) CardFetchTimeout() time.Duration {
	return time.Duration(c.CardFetchTimeoutSec) * time.Second
}

// TrendingWindow is how far back trending crabtags are counted.
func (c *Config) TrendingWindow() time.Duration {
	return time.Duration(c.TrendingWindowHours) * time.Hour
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.MoltsPerPage < 1 {
		return errors.New("MOLTS_PER_PAGE must be positive")
	}
	if c.MoltCharLimit < 1 {
		return errors.New("MOLT_CHAR_LIMIT must be positive")
	}
	if c.CardFetchTimeoutSec < 1 {
		return errors.New("CARD_FETCH_TIMEOUT_SECONDS must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" {
			if c.DBPassword == "password" || c.DBPassword == "" {
				return errors.New("a strong DB_PASSWORD is required in production")
			}
			if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
				return errors.New("DB_SSLMODE must enable TLS in production")
			}
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is set to '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters")
	}

	return nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
