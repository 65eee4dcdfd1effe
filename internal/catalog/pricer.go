package catalog

// Package catalog provides price calculation functionality.

import (
	"errors"
	"fmt"

	"github.com/luxintaste/storefront/internal/models"
)

var (
	// ErrAmountMismatch means the client-claimed total does not equal the sum
	// of the line items. The payment amount is never trusted from the client.
	ErrAmountMismatch = errors.New("claimed amount does not match line items")

	// ErrPriceMismatch means a line-item snapshot disagrees with the catalog.
	ErrPriceMismatch = errors.New("line item price does not match catalog")

	ErrInactiveProduct = errors.New("product is not available for sale")
)

type Pricer struct {
	catalog *Catalog
}

// NewPricer builds a pricer over an optional catalog. A nil catalog limits
// validation to line-item arithmetic.
func NewPricer(catalog *Catalog) *Pricer {
	return &Pricer{catalog: catalog}
}

// ComputeTotal sums line items in cents.
func (p *Pricer) ComputeTotal(products []models.OrderedProduct) int64 {
	var total int64
	for _, item := range products {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		total += item.PriceCents * int64(quantity)
	}
	return total
}

// ValidateOrder checks the claimed total against the line items and, when the
// catalog knows a product, cross-checks the snapshot price and availability.
func (p *Pricer) ValidateOrder(products []models.OrderedProduct, claimedTotalCents int64) error {
	if computed := p.ComputeTotal(products); computed != claimedTotalCents {
		return fmt.Errorf("%w: claimed %d, computed %d", ErrAmountMismatch, claimedTotalCents, computed)
	}

	if p.catalog == nil {
		return nil
	}

	for _, item := range products {
		product := p.catalog.product(item.ProductID)
		if product == nil {
			// Unknown to the catalog; the arithmetic check above still holds.
			continue
		}
		if !product.Active {
			return fmt.Errorf("%w: %s", ErrInactiveProduct, item.ProductID)
		}
		if product.PriceCents != item.PriceCents {
			return fmt.Errorf("%w: %s claimed %d, catalog %d", ErrPriceMismatch, item.ProductID, item.PriceCents, product.PriceCents)
		}
	}
	return nil
}
