package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func payPalTokenHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"pp-token","token_type":"Bearer","expires_in":3600}`))
	}
}

func newTestPayPal(t *testing.T, handler http.HandlerFunc) (*PayPal, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter := NewPayPal(PayPalConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      server.URL,
		WebhookID:    "WH-1",
	}, testLogger())
	return adapter, server
}

func TestPayPalCreateOrder(t *testing.T) {
	t.Parallel()

	var createBody map[string]any
	adapter, _ := newTestPayPal(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			payPalTokenHandler(t)(w, r)
		case "/v2/checkout/orders":
			if got := r.Header.Get("Authorization"); got != "Bearer pp-token" {
				t.Errorf("unexpected authorization header %q", got)
			}
			if err := json.NewDecoder(r.Body).Decode(&createBody); err != nil {
				t.Errorf("failed to decode create body: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED","links":[{"href":"https://paypal.example/approve/5O19","rel":"approve"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	order, err := adapter.CreateOrder(context.Background(), "LUXURY-TXN-abc", 49999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != "5O190127TN364715T" {
		t.Fatalf("unexpected order id %q", order.ID)
	}
	if order.ApproveURL() != "https://paypal.example/approve/5O19" {
		t.Fatalf("unexpected approve URL %q", order.ApproveURL())
	}

	units, _ := createBody["purchase_units"].([]any)
	if len(units) != 1 {
		t.Fatalf("expected one purchase unit, got %v", createBody["purchase_units"])
	}
	unit := units[0].(map[string]any)
	if unit["custom_id"] != "LUXURY-TXN-abc" {
		t.Fatalf("custom_id = %v, want merchant order id", unit["custom_id"])
	}
	amount := unit["amount"].(map[string]any)
	if amount["value"] != "499.99" {
		t.Fatalf("amount value = %v, want 499.99", amount["value"])
	}
}

func TestPayPalTokenFailureIsAuthError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	adapter := NewPayPal(PayPalConfig{
		ClientID:     "client-id",
		ClientSecret: "wrong",
		BaseURL:      server.URL,
	}, testLogger())

	_, err := adapter.CreateOrder(context.Background(), "LUXURY-TXN-x", 100)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth from token fetch failure, got %v", err)
	}
}

func TestPayPalCaptureOrderSkipsCompletedOrder(t *testing.T) {
	t.Parallel()

	captureCalls := 0
	adapter, _ := newTestPayPal(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/oauth2/token":
			payPalTokenHandler(t)(w, r)
		case r.Method == http.MethodGet && r.URL.Path == "/v2/checkout/orders/5O19":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"5O19","status":"COMPLETED","purchase_units":[{"custom_id":"LUXURY-TXN-abc","payments":{"captures":[{"id":"CAP1","status":"COMPLETED","custom_id":"LUXURY-TXN-abc"}]}}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/5O19/capture":
			captureCalls++
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"5O19","status":"COMPLETED"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	order, err := adapter.CaptureOrder(context.Background(), "5O19")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captureCalls != 0 {
		t.Fatalf("capture issued %d times for already-completed order, want 0", captureCalls)
	}
	captures := order.Captures()
	if len(captures) != 1 || captures[0].ID != "CAP1" {
		t.Fatalf("unexpected captures %+v", captures)
	}
	if order.MerchantOrderID() != "LUXURY-TXN-abc" {
		t.Fatalf("unexpected merchant order id %q", order.MerchantOrderID())
	}
}

func TestPayPalCaptureOrderCapturesApprovedOrder(t *testing.T) {
	t.Parallel()

	captureCalls := 0
	adapter, _ := newTestPayPal(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/oauth2/token":
			payPalTokenHandler(t)(w, r)
		case r.Method == http.MethodGet && r.URL.Path == "/v2/checkout/orders/5O19":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"5O19","status":"APPROVED"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/5O19/capture":
			captureCalls++
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"5O19","status":"COMPLETED","purchase_units":[{"custom_id":"LUXURY-TXN-abc","payments":{"captures":[{"id":"CAP1","status":"COMPLETED"}]}}]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	order, err := adapter.CaptureOrder(context.Background(), "5O19")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captureCalls != 1 {
		t.Fatalf("capture issued %d times, want 1", captureCalls)
	}
	if order.Status != "COMPLETED" {
		t.Fatalf("unexpected status %q", order.Status)
	}
}

func TestPayPalValidateCallback(t *testing.T) {
	t.Parallel()

	eventBody := []byte(`{"id":"WH-EV-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP1","status":"COMPLETED","custom_id":"LUXURY-TXN-abc"}}`)

	tests := []struct {
		name         string
		verifyStatus string
		wantErr      error
	}{
		{name: "verified", verifyStatus: "SUCCESS"},
		{name: "rejected", verifyStatus: "FAILURE", wantErr: ErrInvalidSignature},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			adapter, _ := newTestPayPal(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/v1/oauth2/token":
					payPalTokenHandler(t)(w, r)
				case "/v1/notifications/verify-webhook-signature":
					var verifyReq map[string]any
					if err := json.NewDecoder(r.Body).Decode(&verifyReq); err != nil {
						t.Errorf("failed to decode verify request: %v", err)
					}
					if verifyReq["webhook_id"] != "WH-1" {
						t.Errorf("webhook_id = %v, want WH-1", verifyReq["webhook_id"])
					}
					if verifyReq["transmission_id"] != "tx-1" {
						t.Errorf("transmission_id = %v, want tx-1", verifyReq["transmission_id"])
					}
					w.Header().Set("Content-Type", "application/json")
					_ = json.NewEncoder(w).Encode(map[string]string{"verification_status": tc.verifyStatus})
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			})

			callback, err := adapter.ValidateCallback(context.Background(), CallbackRequest{
				TransmissionID:   "tx-1",
				TransmissionTime: "2026-01-01T00:00:00Z",
				TransmissionSig:  "sig",
				CertURL:          "https://api.paypal.example/cert",
				AuthAlgo:         "SHA256withRSA",
				Body:             eventBody,
			})

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if callback.MerchantOrderID != "LUXURY-TXN-abc" || callback.TransactionID != "CAP1" {
				t.Fatalf("unexpected callback %+v", callback)
			}
			if callback.State != "COMPLETED" {
				t.Fatalf("unexpected state %q", callback.State)
			}
		})
	}
}

func TestPayPalValidateCallbackMissingTransmissionHeaders(t *testing.T) {
	t.Parallel()

	adapter := NewPayPal(PayPalConfig{ClientID: "a", ClientSecret: "b", WebhookID: "WH-1"}, testLogger())
	_, err := adapter.ValidateCallback(context.Background(), CallbackRequest{Body: []byte("{}")})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
