package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/luxintaste/storefront/internal/gateway"
	"github.com/luxintaste/storefront/internal/models"
	"github.com/luxintaste/storefront/internal/services"
)

// orderedProductRequest carries prices in major units, the way the frontend
// displays them. Conversion to minor units happens exactly once, here.
type orderedProductRequest struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Color     string  `json:"color"`
	Size      string  `json:"size"`
}

type shippingAddressRequest struct {
	FullName    string `json:"fullName"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
	PhoneNumber string `json:"phoneNumber"`
}

type initiatePaymentRequest struct {
	Gateway         string                  `json:"gateway"`
	Amount          float64                 `json:"amount"`
	Products        []orderedProductRequest `json:"products"`
	ShippingAddress shippingAddressRequest  `json:"shippingAddress"`
}

func (r initiatePaymentRequest) toParams() services.InitiateParams {
	products := make([]models.OrderedProduct, 0, len(r.Products))
	for _, p := range r.Products {
		products = append(products, models.OrderedProduct{
			ProductID:  p.ProductID,
			Name:       p.Name,
			PriceCents: gateway.AmountToMinorUnits(p.Price),
			Quantity:   p.Quantity,
			Color:      p.Color,
			Size:       p.Size,
		})
	}
	return services.InitiateParams{
		Gateway:  models.Gateway(strings.ToUpper(strings.TrimSpace(r.Gateway))),
		Amount:   r.Amount,
		Products: products,
		ShippingAddress: models.ShippingAddress{
			FullName:    r.ShippingAddress.FullName,
			Street:      r.ShippingAddress.Street,
			City:        r.ShippingAddress.City,
			State:       r.ShippingAddress.State,
			PostalCode:  r.ShippingAddress.PostalCode,
			Country:     r.ShippingAddress.Country,
			PhoneNumber: r.ShippingAddress.PhoneNumber,
		},
	}
}

type initiatePaymentResponse struct {
	MerchantOrderID string `json:"merchantOrderId"`
	RedirectURL     string `json:"redirectUrl"`
}

func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	var req initiatePaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.paymentService.Initiate(ctx, req.toParams())
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}

	logger.Info("payment initiated", "merchant_order_id", result.MerchantOrderID)
	h.writeJSON(ctx, w, http.StatusOK, initiatePaymentResponse{
		MerchantOrderID: result.MerchantOrderID,
		RedirectURL:     result.RedirectURL,
	})
}

func (h *Handlers) writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := h.loggerFromContext(ctx)
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		logger.Warn("rejected payment request", "error", err)
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid order data")
	case errors.Is(err, gateway.ErrNotConfigured):
		logger.Warn("payment requested for unconfigured gateway")
		h.writeError(ctx, w, http.StatusServiceUnavailable, "Payment service is not available")
	case errors.Is(err, gateway.ErrAuth):
		logger.Error("gateway authentication failed", "error", err)
		h.writeError(ctx, w, http.StatusBadGateway, "Payment service error")
	default:
		var gatewayErr *gateway.Error
		if errors.As(err, &gatewayErr) {
			logger.Error("gateway request failed", "error", err)
			h.writeError(ctx, w, http.StatusBadGateway, "Payment service error")
			return
		}
		logger.Error("payment initiation failed", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to initiate payment")
	}
}
