package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:    "postgres://localhost/storefront",
		FrontendURL:    "https://shop.example",
		OrderIDPrefix:  "LUXURY-TXN",
		PayPalCurrency: "USD",
		GatewayTimeout: 15 * time.Second,
		CacheProvider:  "memory",
		LogFormat:      "text",
		Port:           "8080",
	}
}

func TestValidateAcceptsMissingGatewayCredentials(t *testing.T) {
	t.Parallel()

	// Absent credential groups are not a config error; the adapter degrades
	// to unconfigured instead.
	cfg := validConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.PhonePeEnabled() || cfg.PayPalEnabled() {
		t.Fatal("expected gateways to report disabled without credentials")
	}
}

func TestValidateCredentialsMustBePaired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "phonepe client id without secret",
			mutate: func(c *Config) { c.PhonePeClientID = "id" },
		},
		{
			name:   "phonepe webhook username without password",
			mutate: func(c *Config) { c.PhonePeWebhookUsername = "hooks" },
		},
		{
			name:   "paypal secret without client id",
			mutate: func(c *Config) { c.PayPalClientSecret = "secret" },
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), "must be set together") {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateFrontendURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https", url: "https://shop.example", wantErr: false},
		{name: "local http", url: "http://localhost:3000", wantErr: false},
		{name: "remote http", url: "http://shop.example", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.FrontendURL = tc.url

			err := cfg.validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateCacheProvider(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CacheProvider = "memcached"

	err := cfg.validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "CacheProvider") || !strings.Contains(err.Error(), "oneof") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatePayPalCurrencyLength(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.PayPalCurrency = "RUPEES"

	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for non ISO-4217 currency code")
	}
}
