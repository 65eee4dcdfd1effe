package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/luxintaste/storefront/internal/models"
	"github.com/luxintaste/storefront/internal/observability"
)

const (
	phonePeDefaultBaseURL = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	phonePeDefaultAuthURL = "https://api-preprod.phonepe.com/apis/pg-sandbox/v1/oauth/token"
)

type PhonePeConfig struct {
	ClientID        string
	ClientSecret    string
	ClientVersion   string
	WebhookUsername string
	WebhookPassword string
	BaseURL         string
	AuthURL         string
	Timeout         time.Duration
}

// PhonePe wraps the Standard Checkout v2 API: an OAuth client-credentials
// token followed by a pay call that returns the hosted checkout redirect URL.
type PhonePe struct {
	cfg        PhonePeConfig
	configured bool
	tokens     oauth2.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

func NewPhonePe(cfg PhonePeConfig, logger *slog.Logger) *PhonePe {
	if cfg.BaseURL == "" {
		cfg.BaseURL = phonePeDefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = phonePeDefaultAuthURL
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "1"
	}

	p := &PhonePe{
		cfg:        cfg,
		configured: cfg.ClientID != "" && cfg.ClientSecret != "",
		httpClient: observability.NewHTTPClient(cfg.Timeout),
		logger:     logger,
	}

	if p.configured {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.AuthURL,
			AuthStyle:    oauth2.AuthStyleInParams,
			EndpointParams: url.Values{
				"client_version": {cfg.ClientVersion},
			},
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, p.httpClient)
		p.tokens = cc.TokenSource(ctx)
	}

	return p
}

func (p *PhonePe) Name() models.Gateway { return models.GatewayPhonePe }

func (p *PhonePe) Configured() bool { return p.configured }

type phonePePayRequest struct {
	MerchantOrderID string             `json:"merchantOrderId"`
	Amount          int64              `json:"amount"`
	PaymentFlow     phonePePaymentFlow `json:"paymentFlow"`
}

type phonePePaymentFlow struct {
	Type         string              `json:"type"`
	MerchantURLs phonePeMerchantURLs `json:"merchantUrls"`
}

type phonePeMerchantURLs struct {
	RedirectURL string `json:"redirectUrl"`
}

type phonePePayResponse struct {
	OrderID     string `json:"orderId"`
	State       string `json:"state"`
	RedirectURL string `json:"redirectUrl"`
}

func (p *PhonePe) InitiatePayment(ctx context.Context, req InitiateRequest) (*Redirect, error) {
	if !p.configured {
		return nil, ErrNotConfigured
	}

	token, err := p.tokens.Token()
	if err != nil {
		return nil, newError(models.GatewayPhonePe, "token", fmt.Errorf("%w: %v", ErrAuth, err))
	}

	payload, err := json.Marshal(phonePePayRequest{
		MerchantOrderID: req.MerchantOrderID,
		Amount:          req.AmountMinor,
		PaymentFlow: phonePePaymentFlow{
			Type:         "PG_CHECKOUT",
			MerchantURLs: phonePeMerchantURLs{RedirectURL: req.RedirectURL},
		},
	})
	if err != nil {
		return nil, newError(models.GatewayPhonePe, "pay", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/checkout/v2/pay", bytes.NewReader(payload))
	if err != nil {
		return nil, newError(models.GatewayPhonePe, "pay", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", token.Type()+" "+token.AccessToken)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, newError(models.GatewayPhonePe, "pay", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, newError(models.GatewayPhonePe, "pay", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, newError(models.GatewayPhonePe, "pay", fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError(models.GatewayPhonePe, "pay", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateForLog(body)))
	}

	var payResp phonePePayResponse
	if err := json.Unmarshal(body, &payResp); err != nil {
		return nil, newError(models.GatewayPhonePe, "pay", fmt.Errorf("invalid response: %w", err))
	}
	if payResp.RedirectURL == "" {
		return nil, newError(models.GatewayPhonePe, "pay", fmt.Errorf("response missing redirect URL"))
	}

	return &Redirect{URL: payResp.RedirectURL, ProviderOrderID: payResp.OrderID}, nil
}

type phonePeCallbackEnvelope struct {
	Event   string                 `json:"event"`
	Type    string                 `json:"type"`
	Payload phonePeCallbackPayload `json:"payload"`
}

type phonePeCallbackPayload struct {
	MerchantOrderID string `json:"merchantOrderId"`
	OrderID         string `json:"orderId"`
	State           string `json:"state"`
	TransactionID   string `json:"transactionId"`
}

// ValidateCallback checks the Authorization header against
// SHA256(username:password) of the configured webhook credentials, computed
// over the raw body as received, then extracts the normalized payload.
func (p *PhonePe) ValidateCallback(_ context.Context, req CallbackRequest) (*Callback, error) {
	if !p.configured || p.cfg.WebhookUsername == "" || p.cfg.WebhookPassword == "" {
		return nil, ErrNotConfigured
	}

	sum := sha256.Sum256([]byte(p.cfg.WebhookUsername + ":" + p.cfg.WebhookPassword))
	expected := hex.EncodeToString(sum[:])
	received := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(req.Authorization), "SHA256 ")))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
		return nil, ErrInvalidSignature
	}

	var envelope phonePeCallbackEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, newError(models.GatewayPhonePe, "callback", fmt.Errorf("invalid payload: %w", err))
	}

	merchantOrderID := envelope.Payload.MerchantOrderID
	if merchantOrderID == "" {
		merchantOrderID = envelope.Payload.OrderID
	}
	if merchantOrderID == "" {
		return nil, newError(models.GatewayPhonePe, "callback", fmt.Errorf("payload missing merchant order id"))
	}

	return &Callback{
		MerchantOrderID: merchantOrderID,
		State:           envelope.Payload.State,
		TransactionID:   envelope.Payload.TransactionID,
		Raw:             req.Body,
	}, nil
}

func truncateForLog(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
