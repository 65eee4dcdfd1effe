package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luxintaste/storefront/internal/cache"
	"github.com/luxintaste/storefront/internal/catalog"
	"github.com/luxintaste/storefront/internal/config"
	"github.com/luxintaste/storefront/internal/db"
	"github.com/luxintaste/storefront/internal/gateway"
	"github.com/luxintaste/storefront/internal/handlers"
	"github.com/luxintaste/storefront/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	shopCatalog, err := catalog.NewParser().Load(cfg.CatalogPath)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	pricer := catalog.NewPricer(shopCatalog)

	orderStore := db.NewOrderStore(database)

	phonepe := gateway.NewPhonePe(gateway.PhonePeConfig{
		ClientID:        cfg.PhonePeClientID,
		ClientSecret:    cfg.PhonePeClientSecret,
		ClientVersion:   cfg.PhonePeClientVersion,
		WebhookUsername: cfg.PhonePeWebhookUsername,
		WebhookPassword: cfg.PhonePeWebhookPassword,
		BaseURL:         cfg.PhonePeBaseURL,
		AuthURL:         cfg.PhonePeAuthURL,
		Timeout:         cfg.GatewayTimeout,
	}, logger.With("component", "phonepe"))

	paypal := gateway.NewPayPal(gateway.PayPalConfig{
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		BaseURL:      cfg.PayPalBaseURL,
		WebhookID:    cfg.PayPalWebhookID,
		Currency:     cfg.PayPalCurrency,
		Timeout:      cfg.GatewayTimeout,
	}, logger.With("component", "paypal"))

	registry := gateway.NewRegistry(phonepe, paypal, gateway.NewRazorpay())
	logger.Info("payment gateways ready", "phonepe", cfg.PhonePeEnabled(), "paypal", cfg.PayPalEnabled())

	paymentService := services.NewPaymentService(
		orderStore,
		registry,
		pricer,
		cfg.FrontendURL,
		cfg.OrderIDPrefix,
		logger.With("component", "payment_service"),
	)
	reconcileService := services.NewReconcileService(
		orderStore,
		registry,
		cacheProvider,
		logger.With("component", "reconcile_service"),
	)
	checkoutService := services.NewCheckoutService(
		paymentService,
		paypal,
		orderStore,
		logger.With("component", "checkout_service"),
	)

	h, err := handlers.New(handlers.Dependencies{
		Config:           cfg,
		DB:               database,
		OrderStore:       orderStore,
		PaymentService:   paymentService,
		ReconcileService: reconcileService,
		CheckoutService:  checkoutService,
		Logger:           logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	default:
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
