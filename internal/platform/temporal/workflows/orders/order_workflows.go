package orders

import (
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	"github.com/Apurer/commerce-engine/internal/platform/temporal/sequences"
)

const (
	// OrderPlacementWorkflowName is the public identifier for registering the placement workflow.
	OrderPlacementWorkflowName = "orders.workflows.Placement"
	// OrderTransitionWorkflowName is the public identifier for registering the transition workflow.
	OrderTransitionWorkflowName = "orders.workflows.Transition"
	// OrdersTaskQueue is the queue consumed by the worker processing order workflows.
	OrdersTaskQueue = "ORDERS"
)

// OrderPlacementWorkflowInput captures the cart to turn into an order.
type OrderPlacementWorkflowInput struct {
	Cart    ordersports.CartSnapshot
	TraceID string
}

// OrderTransitionWorkflowInput captures a requested status change.
type OrderTransitionWorkflowInput struct {
	Command ordersports.TransitionInput
	TraceID string
}

// OrderPlacementWorkflow orchestrates the activities that place an order.
func OrderPlacementWorkflow(ctx workflow.Context, input OrderPlacementWorkflowInput) (*domain.Order, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("OrderPlacementWorkflow started", withTraceID(input.TraceID, "userId", input.Cart.UserID)...)
	order, err := sequences.RunOrderPlacementSequence(ctx, input.Cart)
	if err != nil {
		logger.Error("OrderPlacementWorkflow failed", withTraceID(input.TraceID, "userId", input.Cart.UserID, "error", err)...)
		return nil, err
	}
	logger.Info("OrderPlacementWorkflow completed", withTraceID(input.TraceID, "orderId", order.ID, "orderNumber", order.OrderNumber)...)
	return order, nil
}

// OrderTransitionWorkflow orchestrates a single order status change.
func OrderTransitionWorkflow(ctx workflow.Context, input OrderTransitionWorkflowInput) (*domain.Order, error) {
	logger := workflow.GetLogger(ctx)
	orderID := input.Command.OrderID
	logger.Info("OrderTransitionWorkflow started", withTraceID(input.TraceID, "orderId", orderID, "target", input.Command.Target)...)
	order, err := sequences.RunOrderTransitionSequence(ctx, input.Command)
	if err != nil {
		logger.Error("OrderTransitionWorkflow failed", withTraceID(input.TraceID, "orderId", orderID, "error", err)...)
		return nil, err
	}
	logger.Info("OrderTransitionWorkflow completed", withTraceID(input.TraceID, "orderId", orderID, "status", order.Status)...)
	return order, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
