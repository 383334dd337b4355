package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config keeps runtime settings for the engine.
type Config struct {
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	DatabaseURL   string `env:"DATABASE_URL" envDefault:"taskpilot.db"`
	ListenAddr    string `env:"LISTEN_ADDR" envDefault:":8080"`

	DeliveryInterval time.Duration `env:"DELIVERY_INTERVAL" envDefault:"30s"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
	SendConcurrency  int           `env:"SEND_CONCURRENCY" envDefault:"8"`
	MaxSendAttempts  int           `env:"MAX_SEND_ATTEMPTS" envDefault:"10"`
	DeliveryBatch    int           `env:"DELIVERY_BATCH" envDefault:"200"`

	UndoWindow    time.Duration `env:"UNDO_WINDOW" envDefault:"10m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DeliveryInterval <= 0 {
		return cfg, fmt.Errorf("DELIVERY_INTERVAL must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return cfg, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if cfg.UndoWindow <= 0 {
		return cfg, fmt.Errorf("UNDO_WINDOW must be positive")
	}
	if cfg.SendConcurrency < 1 {
		cfg.SendConcurrency = 1
	}
	if cfg.MaxSendAttempts < 1 {
		cfg.MaxSendAttempts = 1
	}

	return cfg, nil
}
