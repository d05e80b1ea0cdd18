package ports

import (
	"context"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
)

// WorkflowOrchestrator exposes durable workflow operations required by the orders bounded context.
type WorkflowOrchestrator interface {
	PlaceOrder(ctx context.Context, cart CartSnapshot) (*domain.Order, error)
	TransitionOrder(ctx context.Context, input TransitionInput) (*domain.Order, error)
}
