package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/luxintaste/storefront/internal/db"
	"github.com/luxintaste/storefront/internal/gateway"
)

type orderStatusResponse struct {
	MerchantOrderID string    `json:"merchantOrderId"`
	Gateway         string    `json:"gateway"`
	Status          string    `json:"status"`
	PaymentID       string    `json:"paymentId,omitempty"`
	Amount          string    `json:"amount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// OrderStatus lets the frontend poll the payment outcome after the gateway
// redirects the buyer back.
func (h *Handlers) OrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	merchantOrderID := mux.Vars(r)["merchantOrderId"]

	order, err := h.orderStore.GetByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(ctx, w, http.StatusNotFound, "Order not found")
			return
		}
		h.loggerFromContext(ctx).Error("failed to load order", "merchant_order_id", merchantOrderID, "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to load order")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, orderStatusResponse{
		MerchantOrderID: order.MerchantOrderID,
		Gateway:         string(order.PaymentDetails.Gateway),
		Status:          string(order.PaymentDetails.Status),
		PaymentID:       order.PaymentDetails.PaymentID,
		Amount:          gateway.FormatMajorUnits(order.TotalAmountCents),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	})
}
