package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/luxintaste/storefront/internal/catalog"
	"github.com/luxintaste/storefront/internal/gateway"
	"github.com/luxintaste/storefront/internal/logging"
	"github.com/luxintaste/storefront/internal/models"
	"github.com/luxintaste/storefront/internal/observability"
)

// ErrInvalidRequest marks client input that fails validation before any store
// or gateway call is made.
var ErrInvalidRequest = errors.New("invalid order data")

type orderCreator interface {
	Create(ctx context.Context, order *models.Order) error
}

// PaymentService orchestrates payment initiation: it persists a PENDING order
// strictly before contacting the gateway, then returns the provider redirect.
type PaymentService struct {
	orders        orderCreator
	gateways      *gateway.Registry
	pricer        *catalog.Pricer
	frontendURL   string
	orderIDPrefix string
	logger        *slog.Logger
}

func NewPaymentService(orders orderCreator, gateways *gateway.Registry, pricer *catalog.Pricer, frontendURL, orderIDPrefix string, logger *slog.Logger) *PaymentService {
	if pricer == nil {
		pricer = catalog.NewPricer(nil)
	}
	return &PaymentService{
		orders:        orders,
		gateways:      gateways,
		pricer:        pricer,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		orderIDPrefix: orderIDPrefix,
		logger:        logger,
	}
}

func (s *PaymentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type InitiateParams struct {
	Gateway models.Gateway
	// Amount is the order total in major units as claimed by the client. It
	// is validated against the line items and never forwarded unchecked.
	Amount          float64
	Products        []models.OrderedProduct
	ShippingAddress models.ShippingAddress
}

type InitiateResult struct {
	MerchantOrderID string
	RedirectURL     string
	ProviderOrderID string
}

func (s *PaymentService) Initiate(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	if params.Gateway == "" {
		params.Gateway = models.GatewayPhonePe
	}
	if err := s.validate(params); err != nil {
		return nil, err
	}

	adapter, ok := s.gateways.Get(params.Gateway)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported gateway %s", ErrInvalidRequest, params.Gateway)
	}
	// Checked before the order is persisted so an unconfigured gateway leaves
	// no orphaned PENDING rows behind.
	if !adapter.Configured() {
		return nil, gateway.ErrNotConfigured
	}

	merchantOrderID := fmt.Sprintf("%s-%s", s.orderIDPrefix, uuid.NewString())
	totalCents := gateway.AmountToMinorUnits(params.Amount)

	order := &models.Order{
		MerchantOrderID:  merchantOrderID,
		Products:         params.Products,
		ShippingAddress:  params.ShippingAddress,
		TotalAmountCents: totalCents,
		PaymentDetails: models.PaymentDetails{
			Gateway: params.Gateway,
			Status:  models.PaymentPending,
		},
	}

	// The order must be durably recorded before the gateway sees the payment,
	// or a successful payment could arrive with nothing to reconcile against.
	if err := s.orders.Create(ctx, order); err != nil {
		meter.Count("payment.initiate.failed", 1, sentry.WithAttributes(attribute.String("reason", "store_create")))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	logger.Info("order created", "merchant_order_id", merchantOrderID, "gateway", params.Gateway, "total_cents", totalCents)

	redirect, err := adapter.InitiatePayment(ctx, gateway.InitiateRequest{
		MerchantOrderID: merchantOrderID,
		AmountMinor:     totalCents,
		RedirectURL:     s.paymentStatusURL(merchantOrderID),
	})
	if err != nil {
		// The PENDING order stays behind; it carries no payment obligation
		// until a webhook arrives.
		meter.Count("payment.initiate.failed", 1, sentry.WithAttributes(attribute.String("reason", "gateway")))
		logger.Error("payment initiation failed after order creation", "merchant_order_id", merchantOrderID, "gateway", params.Gateway, "error", err)
		return nil, err
	}

	meter.Count("payment.initiate.succeeded", 1, sentry.WithAttributes(attribute.String("gateway", string(params.Gateway))))
	return &InitiateResult{
		MerchantOrderID: merchantOrderID,
		RedirectURL:     redirect.URL,
		ProviderOrderID: redirect.ProviderOrderID,
	}, nil
}

func (s *PaymentService) validate(params InitiateParams) error {
	if !params.Gateway.Valid() {
		return fmt.Errorf("%w: unknown gateway %q", ErrInvalidRequest, params.Gateway)
	}
	if params.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if len(params.Products) == 0 {
		return fmt.Errorf("%w: products must not be empty", ErrInvalidRequest)
	}
	for i, item := range params.Products {
		if item.ProductID == "" || item.Name == "" {
			return fmt.Errorf("%w: product %d missing id or name", ErrInvalidRequest, i)
		}
		if item.PriceCents <= 0 {
			return fmt.Errorf("%w: product %d has non-positive price", ErrInvalidRequest, i)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("%w: product %d has negative quantity", ErrInvalidRequest, i)
		}
	}
	if err := validateAddress(params.ShippingAddress); err != nil {
		return err
	}

	if err := s.pricer.ValidateOrder(params.Products, gateway.AmountToMinorUnits(params.Amount)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func validateAddress(addr models.ShippingAddress) error {
	missing := func(field, value string) error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: shipping address missing %s", ErrInvalidRequest, field)
		}
		return nil
	}
	for _, check := range []error{
		missing("full name", addr.FullName),
		missing("street", addr.Street),
		missing("city", addr.City),
		missing("state", addr.State),
		missing("postal code", addr.PostalCode),
		missing("country", addr.Country),
		missing("phone number", addr.PhoneNumber),
	} {
		if check != nil {
			return check
		}
	}
	return nil
}

func (s *PaymentService) paymentStatusURL(merchantOrderID string) string {
	return s.frontendURL + "/payment-status?orderId=" + url.QueryEscape(merchantOrderID)
}
