package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

// ErrProductUnavailable is returned when a cart line references a product or
// variant that exists but cannot be sold.
var ErrProductUnavailable = errkind.New(errkind.InvalidInput, "product is not available for sale")

// ProductSnapshot is the catalog data copied onto an order line.
type ProductSnapshot struct {
	Name      string
	SKU       string
	UnitPrice decimal.Decimal
	Currency  string
}

// ProductCatalog resolves sellable products for new orders.
type ProductCatalog interface {
	Snapshot(ctx context.Context, productID, variantID string) (ProductSnapshot, error)
}

// Inventory reserves and releases stock on behalf of orders.
type Inventory interface {
	Reserve(ctx context.Context, productID, variantID string, quantity int64) error
	Release(ctx context.Context, productID, variantID string, quantity int64) error
}

// SalesRecorder increments a product's sales counter when an order is delivered.
type SalesRecorder interface {
	RecordSale(ctx context.Context, productID string, quantity int64) error
}
