package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luxintaste/storefront/internal/config"
	"github.com/luxintaste/storefront/internal/gateway"
	"github.com/luxintaste/storefront/internal/logging"
	"github.com/luxintaste/storefront/internal/models"
	"github.com/luxintaste/storefront/internal/services"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MB

type paymentInitiator interface {
	Initiate(ctx context.Context, params services.InitiateParams) (*services.InitiateResult, error)
}

type callbackReconciler interface {
	HandleCallback(ctx context.Context, gatewayName string, req gateway.CallbackRequest) error
}

type checkoutFlow interface {
	CreateOrder(ctx context.Context, params services.InitiateParams) (*services.InitiateResult, error)
	CaptureOrder(ctx context.Context, paypalOrderID string) (*gateway.PayPalOrder, error)
	Refund(ctx context.Context, captureID string, amountMinor int64, reason string) (*gateway.PayPalRefund, error)
}

type orderReader interface {
	GetByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.Order, error)
}

// Handlers provides the storefront's HTTP request handlers.
type Handlers struct {
	config           *config.Config
	db               *pgxpool.Pool
	orderStore       orderReader
	paymentService   paymentInitiator
	reconcileService callbackReconciler
	checkoutService  checkoutFlow
	logger           *slog.Logger
}

type Dependencies struct {
	Config           *config.Config
	DB               *pgxpool.Pool
	OrderStore       orderReader
	PaymentService   paymentInitiator
	ReconcileService callbackReconciler
	CheckoutService  checkoutFlow
	Logger           *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.OrderStore == nil {
		return nil, fmt.Errorf("handlers dependencies: orderStore is required")
	}
	if deps.PaymentService == nil {
		return nil, fmt.Errorf("handlers dependencies: paymentService is required")
	}
	if deps.ReconcileService == nil {
		return nil, fmt.Errorf("handlers dependencies: reconcileService is required")
	}
	if deps.CheckoutService == nil {
		return nil, fmt.Errorf("handlers dependencies: checkoutService is required")
	}

	return &Handlers{
		config:           deps.Config,
		db:               deps.DB,
		orderStore:       deps.OrderStore,
		paymentService:   deps.PaymentService,
		reconcileService: deps.ReconcileService,
		checkoutService:  deps.CheckoutService,
		logger:           logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			logger.Error("database health check failed", "error", err)
			http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
			return
		}
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFromContext(ctx).Error("failed to encode response", "error", err)
	}
}

// writeError sends a generic client-facing message. Upstream provider detail
// stays in the logs.
func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}
