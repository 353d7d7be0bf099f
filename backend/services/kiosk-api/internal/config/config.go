package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "kioskpos/backend/libs/config"
)

// Terminal roles.
const (
	RoleKiosk = "kiosk"
	RoleBoard = "board"
)

// Terminal is a device allowed to log in.
type Terminal struct {
	ID           string `yaml:"id" validate:"required"`
	PasswordHash string `yaml:"passwordHash" validate:"required"`
	Role         string `yaml:"role" validate:"oneof=kiosk board"`
}

// Config defines kiosk-api configuration.
type Config struct {
	LogLevel string `yaml:"logLevel" env:"KIOSK_API_LOG_LEVEL"`
	HTTP     struct {
		Port string `yaml:"port" env:"KIOSK_API_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"KIOSK_API_POSTGRES_DSN" validate:"required"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"KIOSK_API_REDIS_ADDR" validate:"required"`
		Password string `yaml:"password" env:"KIOSK_API_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"KIOSK_API_REDIS_DB"`
	} `yaml:"redis"`
	JWT struct {
		Secret    string        `yaml:"secret" env:"KIOSK_API_JWT_SECRET" validate:"required"`
		ExpiresIn time.Duration `yaml:"expiresIn" env:"KIOSK_API_JWT_EXPIRES_IN"`
	} `yaml:"jwt"`
	Session struct {
		Lifetime time.Duration `yaml:"lifetime" env:"KIOSK_API_SESSION_LIFETIME"`
		Grace    time.Duration `yaml:"grace" env:"KIOSK_API_SESSION_GRACE"`
	} `yaml:"session"`
	Payment struct {
		Providers    []string      `yaml:"providers" env:"KIOSK_API_PAYMENT_PROVIDERS"`
		ReferenceTTL time.Duration `yaml:"referenceTtl" env:"KIOSK_API_PAYMENT_REFERENCE_TTL"`
		QRSize       int           `yaml:"qrSize" env:"KIOSK_API_PAYMENT_QR_SIZE"`
	} `yaml:"payment"`
	Sweeper struct {
		Interval time.Duration `yaml:"interval" env:"KIOSK_API_SWEEPER_INTERVAL"`
		MaxAge   time.Duration `yaml:"maxAge" env:"KIOSK_API_SWEEPER_MAX_AGE"`
	} `yaml:"sweeper"`
	Terminals []Terminal `yaml:"terminals" validate:"dive"`
}

// Load reads configuration via the shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Redis.Addr = "localhost:6379"
	cfg.JWT.ExpiresIn = 12 * time.Hour
	cfg.Session.Lifetime = 2 * time.Minute
	cfg.Session.Grace = time.Minute
	cfg.Payment.Providers = []string{"blik", "card"}
	cfg.Payment.ReferenceTTL = 15 * time.Minute
	cfg.Payment.QRSize = 256
	cfg.Sweeper.Interval = 5 * time.Minute
	cfg.Sweeper.MaxAge = 30 * time.Minute

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if len(cfg.Terminals) == 0 {
		return nil, errors.New("config: at least one terminal required")
	}
	if cfg.Session.Lifetime <= 0 {
		return nil, errors.New("config: session lifetime must be positive")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SessionTTL is how long redis keeps a session: its lifetime plus the window during which it is
// still reported as expired.
func (c *Config) SessionTTL() time.Duration {
	return c.Session.Lifetime + c.Session.Grace
}

// HasProvider reports whether a payment provider is enabled.
func (c *Config) HasProvider(name string) bool {
	for _, p := range c.Payment.Providers {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}
