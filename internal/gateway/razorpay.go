package gateway

import (
	"context"

	"github.com/luxintaste/storefront/internal/models"
)

// Razorpay is a placeholder adapter. It registers the gateway name so that
// stored orders referencing it remain readable, but every operation reports
// the service as unconfigured.
type Razorpay struct{}

func NewRazorpay() *Razorpay { return &Razorpay{} }

func (r *Razorpay) Name() models.Gateway { return models.GatewayRazorpay }

func (r *Razorpay) Configured() bool { return false }

func (r *Razorpay) InitiatePayment(context.Context, InitiateRequest) (*Redirect, error) {
	return nil, ErrNotConfigured
}

func (r *Razorpay) ValidateCallback(context.Context, CallbackRequest) (*Callback, error) {
	return nil, ErrNotConfigured
}
