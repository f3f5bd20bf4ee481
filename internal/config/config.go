// Package config loads server settings from the environment.
//
// Values come from process environment variables, optionally seeded from a .env
// file in the working directory. Real environment variables win over .env.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config contains server configuration parameters.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080" validate:"gte=1,lte=65535"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite" validate:"oneof=sqlite mongo"`
	DBPath      string `env:"DB_PATH" envDefault:"data/pinmap.db" validate:"required_if=StoreDriver sqlite"`
	Mongo       Mongo  `envPrefix:"MONGO_"`

	// JWTSecret signs session tokens. Without it only Google ID tokens are
	// accepted and the browser login flow is off.
	JWTSecret string `env:"JWT_SECRET" validate:"omitempty,min=16"`
	OAuth     OAuth  `envPrefix:"OAUTH_"`
	Minio     Minio  `envPrefix:"MINIO_"`
}

// Mongo contains document store connection parameters.
type Mongo struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"pinmap"`
}

// OAuth contains Google OAuth client parameters.
type OAuth struct {
	ClientID     string `env:"CLIENT_ID" validate:"required"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL" validate:"omitempty,url"`
}

// Minio contains image storage parameters. Uploads are disabled when Endpoint
// is empty.
type Minio struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"pinmap-images"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	PublicURL string `env:"PUBLIC_URL" validate:"omitempty,url"`
}

// Load reads .env (if present) and the environment, fills defaults and
// validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return Parse(env.Options{})
}

// Parse builds a Config from opts, which tests use to supply an explicit
// environment.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	if cfg.OAuth.CallbackURL == "" {
		cfg.OAuth.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BrowserLogin reports whether the OAuth redirect flow can be served.
func (c *Config) BrowserLogin() bool {
	return c.JWTSecret != "" && c.OAuth.ClientSecret != ""
}

// SecureCookies reports whether the app is served over HTTPS, judged by the
// OAuth callback URL.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.OAuth.CallbackURL, "https://")
}

// ImagesEnabled reports whether image uploads are configured.
func (c *Config) ImagesEnabled() bool {
	return c.Minio.Endpoint != ""
}
