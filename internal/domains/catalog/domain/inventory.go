package domain

import "github.com/Apurer/commerce-engine/internal/shared/errkind"

var (
	ErrInvalidQuantity   = errkind.New(errkind.InvalidQuantity, "quantity must be greater than zero")
	ErrInsufficientStock = errkind.New(errkind.InsufficientStock, "insufficient stock")
)

// StockKey addresses a product's own stock or, when VariantID is set, one of its variants.
type StockKey struct {
	ProductID string
	VariantID string
}

// Inventory is the stock policy and available quantity of a product or variant.
type Inventory struct {
	TrackQuantity     bool
	Quantity          int64
	LowStockThreshold int64
	AllowBackorder    bool
}

// DefaultInventory tracks quantity, disallows backorders and uses the default threshold.
func DefaultInventory(quantity int64) Inventory {
	return Inventory{
		TrackQuantity:     true,
		Quantity:          quantity,
		LowStockThreshold: DefaultLowStockThreshold,
	}
}

// IsLowStock is true iff quantity is tracked and at or below the threshold.
func (i Inventory) IsLowStock() bool {
	return i.TrackQuantity && i.Quantity <= i.LowStockThreshold
}

// IsInStock is true iff quantity is untracked or positive.
func (i Inventory) IsInStock() bool {
	return !i.TrackQuantity || i.Quantity > 0
}

// CheckReserve validates a reservation of quantity against the current level.
func (i Inventory) CheckReserve(quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !i.TrackQuantity || i.AllowBackorder {
		return nil
	}
	if quantity > i.Quantity {
		return ErrInsufficientStock
	}
	return nil
}

func (i Inventory) validate() error {
	if i.Quantity < 0 || i.LowStockThreshold < 0 {
		return ErrInvalidInventory
	}
	return nil
}
