package ports

import (
	"fmt"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
)

// InventoryErrorCode enumerates ledger failure causes.
type InventoryErrorCode string

const (
	InventoryErrorInvalidQuantity   InventoryErrorCode = "inventory_invalid_quantity"
	InventoryErrorInsufficientStock InventoryErrorCode = "inventory_insufficient_stock"
	InventoryErrorStockNotFound     InventoryErrorCode = "inventory_stock_not_found"
)

// InventoryError wraps ledger failures with a machine readable code. The wrapped
// error is the matching domain sentinel so errors.Is keeps working.
type InventoryError struct {
	Op      string
	Code    InventoryErrorCode
	Key     domain.StockKey
	Message string
	Err     error
}

func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	target := e.Key.ProductID
	if e.Key.VariantID != "" {
		target += "/" + e.Key.VariantID
	}
	if e.Op != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, target, e.Message)
	}
	return fmt.Sprintf("%s: %s", target, e.Message)
}

func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewInventoryError builds a typed ledger error for op on key.
func NewInventoryError(op string, key domain.StockKey, code InventoryErrorCode) *InventoryError {
	var cause error
	switch code {
	case InventoryErrorInvalidQuantity:
		cause = domain.ErrInvalidQuantity
	case InventoryErrorInsufficientStock:
		cause = domain.ErrInsufficientStock
	case InventoryErrorStockNotFound:
		cause = ErrNotFound
	default:
		cause = fmt.Errorf("inventory failure %s", code)
	}
	return &InventoryError{Op: op, Code: code, Key: key, Message: cause.Error(), Err: cause}
}
