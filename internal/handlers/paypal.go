package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/luxintaste/storefront/internal/gateway"
)

type createPayPalOrderResponse struct {
	ID              string `json:"id"`
	MerchantOrderID string `json:"merchantOrderId"`
	ApproveURL      string `json:"approveUrl"`
}

// CreatePayPalOrder backs the PayPal buttons flow: the frontend creates the
// order here and receives the PayPal order id to approve client-side.
func (h *Handlers) CreatePayPalOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initiatePaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.checkoutService.CreateOrder(ctx, req.toParams())
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, createPayPalOrderResponse{
		ID:              result.ProviderOrderID,
		MerchantOrderID: result.MerchantOrderID,
		ApproveURL:      result.RedirectURL,
	})
}

func (h *Handlers) CapturePayPalOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := mux.Vars(r)["orderID"]

	order, err := h.checkoutService.CaptureOrder(ctx, orderID)
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, order)
}

type refundRequest struct {
	// Amount is in major units; zero means a full refund.
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

func (h *Handlers) RefundPayPalCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	captureID := mux.Vars(r)["captureID"]

	var req refundRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)).Decode(&req); err != nil {
			h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Amount < 0 {
		h.writeError(ctx, w, http.StatusBadRequest, "Refund amount must not be negative")
		return
	}

	refund, err := h.checkoutService.Refund(ctx, captureID, gateway.AmountToMinorUnits(req.Amount), req.Reason)
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, refund)
}
