package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/commerce-engine/internal/domains/orders/application"
	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

const (
	// CreateOrderActivityName reserves stock and persists a new order.
	CreateOrderActivityName = "orders.activities.CreateOrder"
	// TransitionOrderActivityName moves an order to a new status and runs its side effects.
	TransitionOrderActivityName = "orders.activities.TransitionOrder"
)

// Activities groups activities that operate on the orders bounded context.
type Activities struct {
	service ordersports.Service
}

// NewActivities wires the orders service into the Temporal activities bundle.
func NewActivities(service ordersports.Service) *Activities {
	return &Activities{service: service}
}

// CreateOrder places an order from a cart snapshot.
func (a *Activities) CreateOrder(ctx context.Context, cart ordersports.CartSnapshot) (*domain.Order, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("create order activity not initialized", "userId", cart.UserID)
		return nil, errors.New("create order activity not initialized")
	}
	logger.Info("CreateOrder activity started", "userId", cart.UserID, "lines", len(cart.Items))
	order, err := a.service.CreateOrder(ctx, cart)
	if err != nil {
		logger.Error("CreateOrder activity failed", "userId", cart.UserID, "error", err)
		return nil, toActivityError(err)
	}
	logger.Info("CreateOrder activity completed", "orderId", order.ID, "orderNumber", order.OrderNumber)
	return order, nil
}

// TransitionOrder applies a status change.
func (a *Activities) TransitionOrder(ctx context.Context, input ordersports.TransitionInput) (*domain.Order, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("transition order activity not initialized", "orderId", input.OrderID)
		return nil, errors.New("transition order activity not initialized")
	}
	logger.Info("TransitionOrder activity started", "orderId", input.OrderID, "target", input.Target)
	order, err := a.service.TransitionOrder(ctx, input)
	if err != nil {
		logger.Error("TransitionOrder activity failed", "orderId", input.OrderID, "target", input.Target, "error", err)
		return nil, toActivityError(err)
	}
	logger.Info("TransitionOrder activity completed", "orderId", order.ID, "status", order.Status)
	return order, nil
}

// toActivityError marks caller rejections and partially applied transitions as
// non-retryable. A retried transition would find the target status stored and
// skip the side effects that failed.
func toActivityError(err error) error {
	kind := errkind.Of(err)
	if errors.Is(err, application.ErrSideEffectsIncomplete) {
		return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err)
	}
	if errkind.Retryable(err) {
		return temporal.NewApplicationErrorWithCause(err.Error(), string(kind), err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err)
}
