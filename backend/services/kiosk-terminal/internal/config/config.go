package config

import (
	"errors"
	"strings"
	"time"

	libconfig "kioskpos/backend/libs/config"
)

// Config defines kiosk-terminal configuration.
type Config struct {
	LogLevel string `yaml:"logLevel" env:"KIOSK_TERMINAL_LOG_LEVEL"`
	LogFile  string `yaml:"logFile" env:"KIOSK_TERMINAL_LOG_FILE"`
	API      struct {
		BaseURL string        `yaml:"baseUrl" env:"KIOSK_TERMINAL_API_URL" validate:"required,url"`
		Timeout time.Duration `yaml:"timeout" env:"KIOSK_TERMINAL_API_TIMEOUT"`
	} `yaml:"api"`
	Terminal struct {
		ID       string `yaml:"id" env:"KIOSK_TERMINAL_ID" validate:"required"`
		Password string `yaml:"password" env:"KIOSK_TERMINAL_PASSWORD" validate:"required"`
	} `yaml:"terminal"`
	Payment struct {
		Provider string        `yaml:"provider" env:"KIOSK_TERMINAL_PAYMENT_PROVIDER"`
		Deadline time.Duration `yaml:"deadline" env:"KIOSK_TERMINAL_PAYMENT_DEADLINE"`
	} `yaml:"payment"`
}

// Load reads configuration via the shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.LogFile = "kiosk-terminal.log"
	cfg.API.BaseURL = "http://localhost:8080"
	cfg.API.Timeout = 10 * time.Second
	cfg.Payment.Provider = "blik"
	cfg.Payment.Deadline = 90 * time.Second

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	cfg.Payment.Provider = strings.ToLower(strings.TrimSpace(cfg.Payment.Provider))
	if cfg.Payment.Provider == "" {
		return nil, errors.New("config: payment provider required")
	}
	if cfg.API.Timeout <= 0 {
		return nil, errors.New("config: api timeout must be positive")
	}
	return cfg, nil
}
