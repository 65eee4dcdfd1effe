// Package gateway normalizes external payment providers into a common
// initiate/validate contract.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/luxintaste/storefront/internal/models"
)

var (
	// ErrNotConfigured is returned by adapters whose credentials are absent.
	// Construction never fails on missing credentials so the host process can
	// still serve other routes.
	ErrNotConfigured = errors.New("payment gateway is not configured")

	// ErrInvalidSignature means an inbound webhook failed authenticity
	// verification and must be rejected with an authentication failure.
	ErrInvalidSignature = errors.New("webhook signature validation failed")

	// ErrAuth means the provider rejected our credentials (for example a
	// failed OAuth token fetch), as opposed to a payment-processing failure.
	ErrAuth = errors.New("gateway authentication failed")
)

// Error wraps an upstream provider failure with enough context to log.
// Handlers map it to a generic 5xx; provider detail is never echoed to
// clients.
type Error struct {
	Provider models.Gateway
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", strings.ToLower(string(e.Provider)), e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(provider models.Gateway, op string, err error) error {
	return &Error{Provider: provider, Op: op, Err: err}
}

// InitiateRequest asks a provider to create a payment session. AmountMinor is
// in the provider's minor units (paise, cents).
type InitiateRequest struct {
	MerchantOrderID string
	AmountMinor     int64
	RedirectURL     string
}

type Redirect struct {
	URL string
	// ProviderOrderID is the provider-side identifier, when one is returned
	// at initiation time.
	ProviderOrderID string
}

// CallbackRequest carries an inbound webhook exactly as received. Body must be
// the raw, unparsed request bytes: signature verification operates on bytes as
// received, not on a re-serialized object.
type CallbackRequest struct {
	Authorization string
	Body          []byte

	// PayPal transmission headers.
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}

// Callback is a verified, normalized gateway notification.
type Callback struct {
	MerchantOrderID string
	State           string
	TransactionID   string
	Raw             []byte
}

type Adapter interface {
	Name() models.Gateway
	// Configured reports whether the provider credentials are present. An
	// unconfigured adapter degrades gracefully instead of failing at startup.
	Configured() bool
	InitiatePayment(ctx context.Context, req InitiateRequest) (*Redirect, error)
	ValidateCallback(ctx context.Context, req CallbackRequest) (*Callback, error)
}

// Registry maps webhook path names to adapters.
type Registry struct {
	adapters map[models.Gateway]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Gateway]Adapter, len(adapters))}
	for _, a := range adapters {
		if a != nil {
			r.adapters[a.Name()] = a
		}
	}
	return r
}

// Lookup resolves a gateway by name, case-insensitively, so the webhook route
// accepts both /webhooks/phonepe and /webhooks/PHONEPE.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	adapter, ok := r.adapters[models.Gateway(strings.ToUpper(strings.TrimSpace(name)))]
	return adapter, ok
}

func (r *Registry) Get(g models.Gateway) (Adapter, bool) {
	adapter, ok := r.adapters[g]
	return adapter, ok
}

// AmountToMinorUnits converts a major-unit amount (rupees, dollars) to the
// provider's minor units, rounding half-up on the cent boundary. This
// conversion is a named contract: an off-by-factor error here is a real
// monetary mismatch, so it lives in one place and is tested exactly.
func AmountToMinorUnits(major float64) int64 {
	return int64(math.Floor(major*100 + 0.5))
}

// FormatMajorUnits renders a minor-unit amount as a major-unit decimal string
// with two places, the shape PayPal expects for order values.
func FormatMajorUnits(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
