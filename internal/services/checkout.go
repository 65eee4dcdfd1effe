package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/luxintaste/storefront/internal/db"
	"github.com/luxintaste/storefront/internal/gateway"
	"github.com/luxintaste/storefront/internal/logging"
	"github.com/luxintaste/storefront/internal/models"
)

type payPalClient interface {
	CaptureOrder(ctx context.Context, orderID string) (*gateway.PayPalOrder, error)
	RefundCapture(ctx context.Context, captureID string, amountMinor int64, note string) (*gateway.PayPalRefund, error)
}

type checkoutOrderStore interface {
	SettlePayment(ctx context.Context, merchantOrderID string, status models.PaymentStatus, paymentID string, rawPayload []byte) error
	MarkRefunded(ctx context.Context, merchantOrderID, refundID string) error
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
}

// CheckoutService drives the PayPal buyer-approval flow, where capture is
// triggered by the storefront after approval rather than by a webhook.
type CheckoutService struct {
	payments *PaymentService
	paypal   payPalClient
	orders   checkoutOrderStore
	logger   *slog.Logger
}

func NewCheckoutService(payments *PaymentService, paypal payPalClient, orders checkoutOrderStore, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		payments: payments,
		paypal:   paypal,
		orders:   orders,
		logger:   logger,
	}
}

// CreateOrder creates an internal order plus its PayPal counterpart and
// returns the identifiers the frontend buttons need.
func (s *CheckoutService) CreateOrder(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	params.Gateway = models.GatewayPayPal
	return s.payments.Initiate(ctx, params)
}

// CaptureOrder captures an approved PayPal order and settles the matching
// internal order. Settlement conflicts are benign; the capture result is
// returned either way.
func (s *CheckoutService) CaptureOrder(ctx context.Context, paypalOrderID string) (*gateway.PayPalOrder, error) {
	logger := logging.FromContext(ctx, s.logger).With("paypal_order_id", paypalOrderID)

	order, err := s.paypal.CaptureOrder(ctx, paypalOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != "COMPLETED" {
		logger.Warn("capture did not complete", "status", order.Status)
		return order, nil
	}

	merchantOrderID := order.MerchantOrderID()
	if merchantOrderID == "" {
		logger.Warn("captured order carries no merchant order id")
		return order, nil
	}

	paymentID := paypalOrderID
	if captures := order.Captures(); len(captures) > 0 {
		paymentID = captures[0].ID
	}

	err = s.orders.SettlePayment(ctx, merchantOrderID, models.PaymentCompleted, paymentID, nil)
	switch {
	case err == nil:
		logger.Info("order settled from capture", "merchant_order_id", merchantOrderID, "capture_id", paymentID)
	case errors.Is(err, db.ErrInvalidStatusTransition):
		logger.Info("order already settled", "merchant_order_id", merchantOrderID)
	case errors.Is(err, db.ErrNotFound):
		logger.Warn("captured payment references unknown order", "merchant_order_id", merchantOrderID)
	default:
		return nil, fmt.Errorf("failed to settle order %s: %w", merchantOrderID, err)
	}
	return order, nil
}

// Refund refunds a capture, fully when amountMinor is zero, and marks the
// matching internal order REFUNDED.
func (s *CheckoutService) Refund(ctx context.Context, captureID string, amountMinor int64, reason string) (*gateway.PayPalRefund, error) {
	logger := logging.FromContext(ctx, s.logger).With("capture_id", captureID)

	refund, err := s.paypal.RefundCapture(ctx, captureID, amountMinor, reason)
	if err != nil {
		return nil, err
	}
	logger.Info("capture refunded", "refund_id", refund.ID, "status", refund.Status)

	order, err := s.orders.GetByPaymentID(ctx, captureID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("refunded capture references no known order")
			return refund, nil
		}
		return nil, fmt.Errorf("failed to look up order for capture %s: %w", captureID, err)
	}

	if err := s.orders.MarkRefunded(ctx, order.MerchantOrderID, refund.ID); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			logger.Info("order not in a refundable state", "merchant_order_id", order.MerchantOrderID)
			return refund, nil
		}
		return nil, fmt.Errorf("failed to mark order %s refunded: %w", order.MerchantOrderID, err)
	}
	return refund, nil
}
