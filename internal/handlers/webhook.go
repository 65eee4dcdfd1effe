package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/luxintaste/storefront/internal/gateway"
	"github.com/luxintaste/storefront/internal/services"
)

// GatewayWebhook receives payment notifications at /webhooks/{gateway}. The
// body is kept as raw bytes so signature verification sees exactly what the
// provider signed.
func (h *Handlers) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	gatewayName := mux.Vars(r)["gateway"]

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read webhook body", "gateway", gatewayName, "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	req := gateway.CallbackRequest{
		Authorization:    r.Header.Get("Authorization"),
		Body:             body,
		TransmissionID:   r.Header.Get("Paypal-Transmission-Id"),
		TransmissionTime: r.Header.Get("Paypal-Transmission-Time"),
		TransmissionSig:  r.Header.Get("Paypal-Transmission-Sig"),
		CertURL:          r.Header.Get("Paypal-Cert-Url"),
		AuthAlgo:         r.Header.Get("Paypal-Auth-Algo"),
	}

	err = h.reconcileService.HandleCallback(ctx, gatewayName, req)
	switch {
	case err == nil:
		h.writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, services.ErrUnknownGateway):
		logger.Warn("webhook for unknown gateway", "gateway", gatewayName)
		http.Error(w, "Unknown gateway", http.StatusBadRequest)
	case errors.Is(err, gateway.ErrInvalidSignature):
		logger.Warn("webhook signature rejected", "gateway", gatewayName)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, gateway.ErrNotConfigured):
		logger.Warn("webhook for unconfigured gateway", "gateway", gatewayName)
		http.Error(w, "Webhook handler not configured", http.StatusServiceUnavailable)
	default:
		logger.Error("failed to process webhook", "gateway", gatewayName, "error", err)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
	}
}
