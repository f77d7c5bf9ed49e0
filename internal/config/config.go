package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Capture modes recognized for the gateway payment action. The mode only
// changes the wording of status comments; capture itself happens at the
// gateway.
const (
	CaptureModeAuthorize = "authorize"
	CaptureModeCapture   = "capture"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	RazorpayKeyID         string `env:"RAZORPAY_KEY_ID,required" validate:"required"`
	RazorpayKeySecret     string `env:"RAZORPAY_KEY_SECRET,required" validate:"required"`
	RazorpayWebhookSecret string `env:"RAZORPAY_WEBHOOK_SECRET,required" validate:"required"`

	AutoInvoiceEnabled      bool   `env:"AUTO_INVOICE_ENABLED" envDefault:"true"`
	CustomPaidStatusEnabled bool   `env:"CUSTOM_PAID_STATUS_ENABLED" envDefault:"false"`
	CustomPaidStatusLabel   string `env:"CUSTOM_PAID_STATUS_LABEL"`
	CaptureMode             string `env:"CAPTURE_MODE" envDefault:"capture" validate:"oneof=authorize capture"`

	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	SweepWaitWindow time.Duration `env:"SWEEP_WAIT_WINDOW" envDefault:"5m"`

	EmailProvider string `env:"EMAIL_PROVIDER" validate:"omitempty,oneof=resend"`
	EmailAPIKey   string `env:"EMAIL_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"omitempty,email"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.CustomPaidStatusEnabled && strings.TrimSpace(c.CustomPaidStatusLabel) == "" {
		return fmt.Errorf("CUSTOM_PAID_STATUS_LABEL is required when CUSTOM_PAID_STATUS_ENABLED is set")
	}

	hasEmailProvider := strings.TrimSpace(c.EmailProvider) != ""
	if hasEmailProvider && (strings.TrimSpace(c.EmailAPIKey) == "" || strings.TrimSpace(c.EmailFrom) == "") {
		return fmt.Errorf("EMAIL_API_KEY and EMAIL_FROM are required when EMAIL_PROVIDER is set")
	}

	if c.SweepInterval < time.Minute {
		return fmt.Errorf("SWEEP_INTERVAL must be at least 1m")
	}
	if c.SweepWaitWindow < time.Minute {
		return fmt.Errorf("SWEEP_WAIT_WINDOW must be at least 1m")
	}

	return nil
}

// PaidStatusLabel returns the status label applied once a payment transition
// succeeds. Stores may override the default "processing" label.
func (c *Config) PaidStatusLabel() string {
	if c.CustomPaidStatusEnabled {
		if label := strings.TrimSpace(c.CustomPaidStatusLabel); label != "" {
			return label
		}
	}
	return "processing"
}
