package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	orderactivities "github.com/Apurer/commerce-engine/internal/platform/temporal/activities/orders"
)

func orderActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	}
}

// RunOrderPlacementSequence reserves stock and persists the order described by cart.
func RunOrderPlacementSequence(ctx workflow.Context, cart ordersports.CartSnapshot) (*domain.Order, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("order placement sequence started", "userId", cart.UserID, "lines", len(cart.Items))
	ctx = workflow.WithActivityOptions(ctx, orderActivityOptions())

	var order domain.Order
	if err := workflow.ExecuteActivity(ctx, orderactivities.CreateOrderActivityName, cart).Get(ctx, &order); err != nil {
		logger.Error("order placement sequence failed", "userId", cart.UserID, "error", err)
		return nil, err
	}
	logger.Info("order placement sequence completed", "orderId", order.ID, "orderNumber", order.OrderNumber)
	return &order, nil
}

// RunOrderTransitionSequence applies one status change and its side effects.
func RunOrderTransitionSequence(ctx workflow.Context, input ordersports.TransitionInput) (*domain.Order, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("order transition sequence started", "orderId", input.OrderID, "target", input.Target)
	ctx = workflow.WithActivityOptions(ctx, orderActivityOptions())

	var order domain.Order
	if err := workflow.ExecuteActivity(ctx, orderactivities.TransitionOrderActivityName, input).Get(ctx, &order); err != nil {
		logger.Error("order transition sequence failed", "orderId", input.OrderID, "error", err)
		return nil, err
	}
	logger.Info("order transition sequence completed", "orderId", order.ID, "status", order.Status)
	return &order, nil
}
