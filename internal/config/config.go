package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// FrontendURL is where buyers land after checkout; the merchant order ID
	// is appended as a query parameter.
	FrontendURL string `env:"FRONTEND_URL,required" validate:"required,url"`
	BaseURL     string `env:"BASE_URL" validate:"omitempty,url"`

	// OrderIDPrefix makes merchant order IDs traceable in gateway dashboards.
	OrderIDPrefix string `env:"ORDER_ID_PREFIX" envDefault:"LUXURY-TXN" validate:"required"`

	CatalogPath string `env:"CATALOG_PATH"`

	PhonePeClientID        string `env:"PHONEPE_CLIENT_ID"`
	PhonePeClientSecret    string `env:"PHONEPE_CLIENT_SECRET"`
	PhonePeClientVersion   string `env:"PHONEPE_CLIENT_VERSION" envDefault:"1"`
	PhonePeWebhookUsername string `env:"PHONEPE_WEBHOOK_USERNAME"`
	PhonePeWebhookPassword string `env:"PHONEPE_WEBHOOK_PASSWORD"`
	PhonePeBaseURL         string `env:"PHONEPE_BASE_URL" validate:"omitempty,url"`
	PhonePeAuthURL         string `env:"PHONEPE_AUTH_URL" validate:"omitempty,url"`

	PayPalClientID     string `env:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
	PayPalBaseURL      string `env:"PAYPAL_BASE_URL" validate:"omitempty,url"`
	PayPalWebhookID    string `env:"PAYPAL_WEBHOOK_ID"`
	PayPalCurrency     string `env:"PAYPAL_CURRENCY" envDefault:"USD" validate:"len=3"`

	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"15s" validate:"min=1s,max=2m"`

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

	// Gateway credential groups may be absent entirely (the adapter then
	// reports itself unconfigured) but must never be half-set.
	if err := requireTogether("PHONEPE_CLIENT_ID and PHONEPE_CLIENT_SECRET", c.PhonePeClientID, c.PhonePeClientSecret); err != nil {
		return err
	}
	if err := requireTogether("PHONEPE_WEBHOOK_USERNAME and PHONEPE_WEBHOOK_PASSWORD", c.PhonePeWebhookUsername, c.PhonePeWebhookPassword); err != nil {
		return err
	}
	if err := requireTogether("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET", c.PayPalClientID, c.PayPalClientSecret); err != nil {
		return err
	}

	if err := requireAbsoluteURL("FRONTEND_URL", c.FrontendURL); err != nil {
		return err
	}
	if c.BaseURL != "" {
		if err := requireAbsoluteURL("BASE_URL", c.BaseURL); err != nil {
			return err
		}
	}

	return nil
}

// PhonePeEnabled reports whether the PhonePe credential group is present.
func (c *Config) PhonePeEnabled() bool {
	return strings.TrimSpace(c.PhonePeClientID) != "" && strings.TrimSpace(c.PhonePeClientSecret) != ""
}

func (c *Config) PayPalEnabled() bool {
	return strings.TrimSpace(c.PayPalClientID) != "" && strings.TrimSpace(c.PayPalClientSecret) != ""
}

func requireTogether(names, a, b string) error {
	hasA := strings.TrimSpace(a) != ""
	hasB := strings.TrimSpace(b) != ""
	if hasA != hasB {
		return fmt.Errorf("%s must be set together", names)
	}
	return nil
}

func requireAbsoluteURL(name, rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("%s must be a valid absolute URL", name)
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("%s must use https outside local development", name)
	}
	return nil
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
