package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/luxintaste/storefront/internal/models"
	"github.com/luxintaste/storefront/internal/observability"
)

const payPalDefaultBaseURL = "https://api-m.sandbox.paypal.com"

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	// WebhookID identifies the webhook subscription; required to verify
	// inbound event signatures.
	WebhookID string
	Currency  string
	Timeout   time.Duration
}

// PayPal wraps the Orders v2 API. Every call is preceded by an explicit
// access-token fetch via the client-credentials grant; token failures surface
// as ErrAuth, distinct from payment-processing errors.
type PayPal struct {
	cfg        PayPalConfig
	configured bool
	tokens     oauth2.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

func NewPayPal(cfg PayPalConfig, logger *slog.Logger) *PayPal {
	if cfg.BaseURL == "" {
		cfg.BaseURL = payPalDefaultBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}

	p := &PayPal{
		cfg:        cfg,
		configured: cfg.ClientID != "" && cfg.ClientSecret != "",
		httpClient: observability.NewHTTPClient(cfg.Timeout),
		logger:     logger,
	}

	if p.configured {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.BaseURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, p.httpClient)
		p.tokens = oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx))
	}

	return p
}

func (p *PayPal) Name() models.Gateway { return models.GatewayPayPal }

func (p *PayPal) Configured() bool { return p.configured }

// getAccessToken obtains a short-lived OAuth token before each API call.
// The token source caches until expiry, so this is cheap on the happy path.
func (p *PayPal) getAccessToken() (string, error) {
	if !p.configured {
		return "", ErrNotConfigured
	}
	token, err := p.tokens.Token()
	if err != nil {
		return "", newError(models.GatewayPayPal, "token", fmt.Errorf("%w: %v", ErrAuth, err))
	}
	return token.AccessToken, nil
}

type PayPalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type PayPalCapture struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	CustomID string `json:"custom_id"`
}

type PayPalPurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Payments    *struct {
		Captures []PayPalCapture `json:"captures"`
	} `json:"payments,omitempty"`
}

type PayPalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	PurchaseUnits []PayPalPurchaseUnit `json:"purchase_units"`
	Links         []PayPalLink         `json:"links"`
}

// ApproveURL returns the buyer-facing approval link, if present.
func (o *PayPalOrder) ApproveURL() string {
	for _, link := range o.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

// Captures returns all captures across purchase units.
func (o *PayPalOrder) Captures() []PayPalCapture {
	var captures []PayPalCapture
	for _, unit := range o.PurchaseUnits {
		if unit.Payments != nil {
			captures = append(captures, unit.Payments.Captures...)
		}
	}
	return captures
}

// MerchantOrderID returns the custom_id correlating the PayPal order back to
// our own order record.
func (o *PayPalOrder) MerchantOrderID() string {
	for _, unit := range o.PurchaseUnits {
		if unit.CustomID != "" {
			return unit.CustomID
		}
	}
	return ""
}

func (p *PayPal) CreateOrder(ctx context.Context, merchantOrderID string, amountMinor int64) (*PayPalOrder, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": merchantOrderID,
			"custom_id":    merchantOrderID,
			"amount": map[string]string{
				"currency_code": p.cfg.Currency,
				"value":         FormatMajorUnits(amountMinor),
			},
		}},
	}

	var order PayPalOrder
	if err := p.call(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order, "create_order"); err != nil {
		return nil, err
	}
	return &order, nil
}

func (p *PayPal) GetOrder(ctx context.Context, orderID string) (*PayPalOrder, error) {
	var order PayPalOrder
	if err := p.call(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, &order, "get_order"); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder completes the payment. A capture is not retried blindly: the
// order is fetched first and, if a capture already succeeded, the existing
// result is returned instead of issuing a second capture call.
func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (*PayPalOrder, error) {
	existing, err := p.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.Status == "COMPLETED" {
		return existing, nil
	}

	var order PayPalOrder
	if err := p.call(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", map[string]any{}, &order, "capture_order"); err != nil {
		return nil, err
	}
	return &order, nil
}

type PayPalRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RefundCapture refunds a capture, fully when amountMinor is zero.
func (p *PayPal) RefundCapture(ctx context.Context, captureID string, amountMinor int64, note string) (*PayPalRefund, error) {
	payload := map[string]any{}
	if amountMinor > 0 {
		payload["amount"] = map[string]string{
			"currency_code": p.cfg.Currency,
			"value":         FormatMajorUnits(amountMinor),
		}
	}
	if note != "" {
		payload["note_to_payer"] = note
	}

	var refund PayPalRefund
	if err := p.call(ctx, http.MethodPost, "/v2/payments/captures/"+captureID+"/refund", payload, &refund, "refund_capture"); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (p *PayPal) InitiatePayment(ctx context.Context, req InitiateRequest) (*Redirect, error) {
	order, err := p.CreateOrder(ctx, req.MerchantOrderID, req.AmountMinor)
	if err != nil {
		return nil, err
	}

	approveURL := order.ApproveURL()
	if approveURL == "" {
		return nil, newError(models.GatewayPayPal, "create_order", fmt.Errorf("order %s has no approval link", order.ID))
	}
	return &Redirect{URL: approveURL, ProviderOrderID: order.ID}, nil
}

type payPalVerifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

type payPalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		CustomID string `json:"custom_id"`
	} `json:"resource"`
}

// ValidateCallback verifies an inbound event through PayPal's
// verify-webhook-signature endpoint, passing the raw body exactly as received.
func (p *PayPal) ValidateCallback(ctx context.Context, req CallbackRequest) (*Callback, error) {
	if !p.configured || p.cfg.WebhookID == "" {
		return nil, ErrNotConfigured
	}
	if req.TransmissionID == "" || req.TransmissionSig == "" {
		return nil, ErrInvalidSignature
	}

	payload := map[string]any{
		"auth_algo":         req.AuthAlgo,
		"cert_url":          req.CertURL,
		"transmission_id":   req.TransmissionID,
		"transmission_sig":  req.TransmissionSig,
		"transmission_time": req.TransmissionTime,
		"webhook_id":        p.cfg.WebhookID,
		"webhook_event":     json.RawMessage(req.Body),
	}

	var verify payPalVerifyResponse
	if err := p.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &verify, "verify_webhook"); err != nil {
		return nil, err
	}
	if verify.VerificationStatus != "SUCCESS" {
		return nil, ErrInvalidSignature
	}

	var event payPalEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return nil, newError(models.GatewayPayPal, "callback", fmt.Errorf("invalid event payload: %w", err))
	}
	if event.Resource.CustomID == "" {
		return nil, newError(models.GatewayPayPal, "callback", fmt.Errorf("event %s missing custom_id", event.ID))
	}

	state := event.Resource.Status
	if state == "" {
		state = event.EventType
	}

	return &Callback{
		MerchantOrderID: event.Resource.CustomID,
		State:           state,
		TransactionID:   event.Resource.ID,
		Raw:             req.Body,
	}, nil
}

func (p *PayPal) call(ctx context.Context, method, path string, payload any, out any, op string) error {
	accessToken, err := p.getAccessToken()
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return newError(models.GatewayPayPal, op, err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return newError(models.GatewayPayPal, op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return newError(models.GatewayPayPal, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return newError(models.GatewayPayPal, op, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return newError(models.GatewayPayPal, op, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(models.GatewayPayPal, op, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateForLog(respBody)))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return newError(models.GatewayPayPal, op, fmt.Errorf("invalid response: %w", err))
		}
	}
	return nil
}
