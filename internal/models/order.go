package models

import (
	"encoding/json"
	"time"
)

type Gateway string

const (
	GatewayPhonePe  Gateway = "PHONEPE"
	GatewayRazorpay Gateway = "RAZORPAY"
	GatewayPayPal   Gateway = "PAYPAL"
)

func (g Gateway) Valid() bool {
	switch g {
	case GatewayPhonePe, GatewayRazorpay, GatewayPayPal:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// OrderedProduct is a snapshot of a product captured at order-creation time.
// It stays unchanged even if the catalog entry is later edited or removed.
type OrderedProduct struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Color      string `json:"color,omitempty"`
	Size       string `json:"size,omitempty"`
}

type ShippingAddress struct {
	FullName    string `json:"full_name"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	PhoneNumber string `json:"phone_number"`
}

type PaymentDetails struct {
	Gateway   Gateway       `json:"gateway"`
	Status    PaymentStatus `json:"status"`
	PaymentID string        `json:"payment_id,omitempty"`
	// WebhookPayload keeps the raw gateway notification for debugging.
	WebhookPayload json.RawMessage `json:"webhook_payload,omitempty"`
}

// Order is the durable record keyed by MerchantOrderID. The ID is generated
// before any gateway call and is the correlation key between internal state
// and gateway callbacks.
type Order struct {
	MerchantOrderID  string           `json:"merchant_order_id"`
	Products         []OrderedProduct `json:"products"`
	ShippingAddress  ShippingAddress  `json:"shipping_address"`
	TotalAmountCents int64            `json:"total_amount_cents"`
	PaymentDetails   PaymentDetails   `json:"payment_details"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
