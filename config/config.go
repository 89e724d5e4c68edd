// Package config loads server configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/warp/agency-billing/logger"
	"github.com/warp/agency-billing/store/postgres"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Access    AccessConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Billing   BillingConfig
	Log       logger.Config
}

type AppConfig struct {
	Port string
	Seed bool // load demo data into an empty database
}

type DatabaseConfig struct {
	Driver   string // sqlite or postgres
	Path     string // sqlite file, or ":memory:"
	Postgres postgres.Config
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type AccessConfig struct {
	// ViewAllGrants are "role:section" entries; "role:*" grants every section.
	ViewAllGrants []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type BillingConfig struct {
	BulkTaxConcurrency int
}

// Load reads configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		if !isMissingFile(err) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_SEED", false)
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "billing.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "billing")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("GRANTS_VIEW_ALL", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("BULK_TAX_CONCURRENCY", 4)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
}

func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Port: v.GetString("APP_PORT"),
			Seed: v.GetBool("APP_SEED"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			Path:   v.GetString("DB_PATH"),
			Postgres: postgres.Config{
				Host:     v.GetString("DB_HOST"),
				Port:     v.GetString("DB_PORT"),
				Name:     v.GetString("DB_NAME"),
				User:     v.GetString("DB_USER"),
				Password: v.GetString("DB_PASSWORD"),
				SSLMode:  v.GetString("DB_SSL_MODE"),
				Timezone: v.GetString("DB_TIMEZONE"),
			},
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Access: AccessConfig{
			ViewAllGrants: splitList(v.GetString("GRANTS_VIEW_ALL")),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Billing: BillingConfig{
			BulkTaxConcurrency: v.GetInt("BULK_TAX_CONCURRENCY"),
		},
		Log: logger.Config{
			Level:      v.GetString("LOG_LEVEL"),
			Format:     v.GetString("LOG_FORMAT"),
			Output:     v.GetString("LOG_OUTPUT"),
			TimeFormat: logger.DefaultConfig().TimeFormat,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Name == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (use sqlite or postgres)", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	if c.Billing.BulkTaxConcurrency < 1 {
		return fmt.Errorf("BULK_TAX_CONCURRENCY must be at least 1")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
