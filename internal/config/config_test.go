package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:           "postgres://localhost:5432/payrecon",
		RazorpayKeyID:         "rzp_test_key",
		RazorpayKeySecret:     "secret",
		RazorpayWebhookSecret: "whsecret",
		AutoInvoiceEnabled:    true,
		CaptureMode:           CaptureModeCapture,
		SweepInterval:         5 * time.Minute,
		SweepWaitWindow:       5 * time.Minute,
		CacheProvider:         "memory",
		LogFormat:             "text",
		Port:                  "8080",
	}
}

func TestValidateValidConfig(t *testing.T) {
	t.Parallel()

	if err := validConfig().validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateCaptureMode(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CaptureMode = "deferred"

	err := cfg.validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "CaptureMode") || !strings.Contains(err.Error(), "oneof") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCustomPaidStatusLabel(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CustomPaidStatusEnabled = true
	cfg.CustomPaidStatusLabel = "  "

	err := cfg.validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "CUSTOM_PAID_STATUS_LABEL") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateEmailProviderRequiresCredentials(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.EmailProvider = "resend"

	err := cfg.validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	cfg.EmailAPIKey = "re_key"
	cfg.EmailFrom = "orders@example.com"
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateSweepDurations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		muter func(*Config)
	}{
		{
			name:  "interval too short",
			muter: func(c *Config) { c.SweepInterval = 10 * time.Second },
		},
		{
			name:  "wait window too short",
			muter: func(c *Config) { c.SweepWaitWindow = 0 },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.muter(cfg)
			if err := cfg.validate(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestPaidStatusLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		enabled bool
		label   string
		want    string
	}{
		{name: "default", enabled: false, label: "", want: "processing"},
		{name: "custom", enabled: true, label: "payment_received", want: "payment_received"},
		{name: "custom ignored when disabled", enabled: false, label: "payment_received", want: "processing"},
		{name: "blank custom falls back", enabled: true, label: "  ", want: "processing"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.CustomPaidStatusEnabled = tt.enabled
			cfg.CustomPaidStatusLabel = tt.label
			if got := cfg.PaidStatusLabel(); got != tt.want {
				t.Fatalf("PaidStatusLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/payrecon")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_key")
	t.Setenv("RAZORPAY_KEY_SECRET", "secret")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "whsecret")
	t.Setenv("CAPTURE_MODE", "authorize")
	t.Setenv("SWEEP_INTERVAL", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CaptureMode != CaptureModeAuthorize {
		t.Errorf("capture mode = %q, want authorize", cfg.CaptureMode)
	}
	if cfg.SweepInterval != 10*time.Minute {
		t.Errorf("sweep interval = %s, want 10m", cfg.SweepInterval)
	}
	if cfg.SweepWaitWindow != 5*time.Minute {
		t.Errorf("sweep wait window = %s, want default 5m", cfg.SweepWaitWindow)
	}
	if !cfg.AutoInvoiceEnabled {
		t.Error("auto invoicing should default to enabled")
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want default 8080", cfg.Port)
	}
}
