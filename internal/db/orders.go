package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luxintaste/storefront/internal/models"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrDuplicateOrder = errors.New("duplicate merchant order id")
	// ErrInvalidStatusTransition is returned when a conditional update matched
	// no row: either the order does not exist or it already left the expected
	// status. Webhook callers treat both as benign no-ops.
	ErrInvalidStatusTransition = errors.New("invalid payment status transition")
)

const pgUniqueViolation = "23505"

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts a new order. The caller is expected to have set
// PaymentDetails.Status to PENDING; the store enforces it regardless so that
// no order can enter the table already settled.
func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}

	productsJSON, err := json.Marshal(order.Products)
	if err != nil {
		return fmt.Errorf("failed to marshal products: %w", err)
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	query := `
		INSERT INTO orders (merchant_order_id, products, shipping_address, total_amount_cents, gateway, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt pgtype.Timestamptz
	err = s.pool.QueryRow(ctx, query,
		order.MerchantOrderID,
		productsJSON,
		addressJSON,
		order.TotalAmountCents,
		string(order.PaymentDetails.Gateway),
		string(models.PaymentPending),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.MerchantOrderID)
		}
		return err
	}

	order.PaymentDetails.Status = models.PaymentPending
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time
	return nil
}

func (s *OrderStore) GetByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.Order, error) {
	query := `
		SELECT merchant_order_id, products, shipping_address, total_amount_cents,
		       gateway, payment_status, payment_id, webhook_payload, created_at, updated_at
		FROM orders
		WHERE merchant_order_id = $1
	`
	row := s.pool.QueryRow(ctx, query, merchantOrderID)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, merchantOrderID)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SettlePayment transitions an order from PENDING to a terminal status in a
// single atomic statement. The status guard in the WHERE clause is the sole
// mutual-exclusion mechanism against duplicate webhook deliveries: a second
// delivery matches no row and returns ErrInvalidStatusTransition.
func (s *OrderStore) SettlePayment(ctx context.Context, merchantOrderID string, status models.PaymentStatus, paymentID string, rawPayload []byte) error {
	if status != models.PaymentCompleted && status != models.PaymentFailed {
		return fmt.Errorf("settle status must be terminal, got %q", status)
	}

	query := `
		UPDATE orders
		SET payment_status = $1, payment_id = $2, webhook_payload = $3, updated_at = NOW()
		WHERE merchant_order_id = $4 AND payment_status = 'PENDING'
	`
	cmdTag, err := s.pool.Exec(ctx, query,
		string(status),
		pgtype.Text{String: paymentID, Valid: paymentID != ""},
		rawPayload,
		merchantOrderID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected PENDING", ErrInvalidStatusTransition)
	}
	return nil
}

// MarkRefunded transitions COMPLETED to REFUNDED, recording the refund ID.
func (s *OrderStore) MarkRefunded(ctx context.Context, merchantOrderID, refundID string) error {
	query := `
		UPDATE orders
		SET payment_status = 'REFUNDED', payment_id = COALESCE(NULLIF($1, ''), payment_id), updated_at = NOW()
		WHERE merchant_order_id = $2 AND payment_status = 'COMPLETED'
	`
	cmdTag, err := s.pool.Exec(ctx, query, refundID, merchantOrderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected COMPLETED", ErrInvalidStatusTransition)
	}
	return nil
}

// GetByPaymentID looks an order up by the gateway transaction or capture ID.
func (s *OrderStore) GetByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	query := `
		SELECT merchant_order_id, products, shipping_address, total_amount_cents,
		       gateway, payment_status, payment_id, webhook_payload, created_at, updated_at
		FROM orders
		WHERE payment_id = $1
	`
	row := s.pool.QueryRow(ctx, query, paymentID)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment %s", ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order        models.Order
		productsJSON []byte
		addressJSON  []byte
		gateway      string
		status       string
		paymentID    pgtype.Text
		payload      []byte
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)

	err := row.Scan(
		&order.MerchantOrderID,
		&productsJSON,
		&addressJSON,
		&order.TotalAmountCents,
		&gateway,
		&status,
		&paymentID,
		&payload,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(productsJSON, &order.Products); err != nil {
		return nil, fmt.Errorf("failed to unmarshal products: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
	}

	order.PaymentDetails = models.PaymentDetails{
		Gateway: models.Gateway(gateway),
		Status:  models.PaymentStatus(status),
	}
	if paymentID.Valid {
		order.PaymentDetails.PaymentID = paymentID.String
	}
	if len(payload) > 0 {
		order.PaymentDetails.WebhookPayload = payload
	}
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time

	return &order, nil
}
