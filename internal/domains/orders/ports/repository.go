package ports

import (
	"context"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

var (
	ErrNotFound             = errkind.New(errkind.NotFound, "order not found")
	ErrDuplicateOrder       = errkind.New(errkind.Conflict, "order id already exists")
	ErrDuplicateOrderNumber = errkind.New(errkind.Conflict, "order number already exists")
	ErrConcurrentUpdate     = errkind.New(errkind.Conflict, "order was modified concurrently")
)

// Repository persists orders. Update is an optimistic write that only succeeds
// while the stored version still equals expectedVersion.
type Repository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	Update(ctx context.Context, order *domain.Order, expectedVersion int64) error
	HasDeliveredPurchase(ctx context.Context, userID, productID string) (bool, error)
}
