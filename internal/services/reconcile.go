package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/luxintaste/storefront/internal/cache"
	"github.com/luxintaste/storefront/internal/db"
	"github.com/luxintaste/storefront/internal/gateway"
	"github.com/luxintaste/storefront/internal/logging"
	"github.com/luxintaste/storefront/internal/models"
	"github.com/luxintaste/storefront/internal/observability"
)

// ErrUnknownGateway is returned for webhook paths naming a gateway the
// registry does not know about.
var ErrUnknownGateway = errors.New("unknown gateway")

const webhookDedupTTL = 24 * time.Hour

type orderSettler interface {
	SettlePayment(ctx context.Context, merchantOrderID string, status models.PaymentStatus, paymentID string, rawPayload []byte) error
}

// ReconcileService applies verified gateway callbacks to orders. Settlement is
// exactly-once: the store's conditional update only succeeds for PENDING
// orders, so replays and races collapse to benign no-ops.
type ReconcileService struct {
	orders   orderSettler
	gateways *gateway.Registry
	cache    cache.Provider
	logger   *slog.Logger
}

func NewReconcileService(orders orderSettler, gateways *gateway.Registry, cacheProvider cache.Provider, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		orders:   orders,
		gateways: gateways,
		cache:    cacheProvider,
		logger:   logger,
	}
}

// HandleCallback verifies and applies a single webhook delivery. A nil return
// means the delivery was consumed and the gateway should receive a success
// response, including replays and callbacks for orders that no longer exist.
func (s *ReconcileService) HandleCallback(ctx context.Context, gatewayName string, req gateway.CallbackRequest) error {
	logger := logging.FromContext(ctx, s.logger)
	meter := observability.MeterFromContext(ctx)

	adapter, ok := s.gateways.Lookup(gatewayName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGateway, gatewayName)
	}

	callback, err := adapter.ValidateCallback(ctx, req)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			meter.Count("webhook.rejected", 1, sentry.WithAttributes(
				attribute.String("gateway", string(adapter.Name())),
				attribute.String("reason", "invalid_signature"),
			))
		}
		return err
	}

	logger = logger.With("gateway", adapter.Name(), "merchant_order_id", callback.MerchantOrderID, "transaction_id", callback.TransactionID)

	if s.seen(ctx, adapter.Name(), callback.TransactionID) {
		logger.Info("webhook delivery already processed, skipping")
		meter.Count("webhook.duplicate", 1, sentry.WithAttributes(attribute.String("gateway", string(adapter.Name()))))
		return nil
	}

	status, terminal := mapProviderState(callback.State)
	if !terminal {
		// Non-terminal notifications (PENDING and friends) carry no state
		// change; the order stays PENDING until a terminal state arrives.
		logger.Info("ignoring non-terminal webhook state", "state", callback.State)
		return nil
	}

	err = s.orders.SettlePayment(ctx, callback.MerchantOrderID, status, callback.TransactionID, callback.Raw)
	switch {
	case err == nil:
		logger.Info("order settled from webhook", "status", status)
		meter.Count("webhook.settled", 1, sentry.WithAttributes(
			attribute.String("gateway", string(adapter.Name())),
			attribute.String("status", string(status)),
		))
	case errors.Is(err, db.ErrInvalidStatusTransition):
		// Already settled, likely a replay that outran the dedup cache.
		logger.Info("order already settled, webhook ignored")
	case errors.Is(err, db.ErrNotFound):
		// Unknown orders get an acknowledgement too; retrying cannot make the
		// order appear.
		logger.Warn("webhook references unknown order")
	default:
		return fmt.Errorf("failed to settle order: %w", err)
	}

	s.remember(ctx, adapter.Name(), callback.TransactionID)
	return nil
}

func (s *ReconcileService) seen(ctx context.Context, gw models.Gateway, transactionID string) bool {
	if s.cache == nil || transactionID == "" {
		return false
	}
	_, err := s.cache.Get(ctx, cache.WebhookKey(string(gw), transactionID))
	return err == nil
}

func (s *ReconcileService) remember(ctx context.Context, gw models.Gateway, transactionID string) {
	if s.cache == nil || transactionID == "" {
		return
	}
	if err := s.cache.Set(ctx, cache.WebhookKey(string(gw), transactionID), "1", webhookDedupTTL); err != nil {
		logging.FromContext(ctx, s.logger).Warn("failed to record webhook delivery", "error", err)
	}
}

// mapProviderState folds the gateways' state vocabularies into the internal
// payment status. The second return is false for non-terminal states.
func mapProviderState(state string) (models.PaymentStatus, bool) {
	switch strings.ToUpper(state) {
	case "COMPLETED", "SUCCESS", "SUCCEEDED", "PAYMENT.CAPTURE.COMPLETED":
		return models.PaymentCompleted, true
	case "PENDING", "PROCESSING", "CREATED", "APPROVED", "CHECKOUT.ORDER.APPROVED":
		return "", false
	default:
		return models.PaymentFailed, true
	}
}
