package workflows

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	orderworkflows "github.com/Apurer/commerce-engine/internal/platform/temporal/workflows/orders"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

var (
	_ ports.WorkflowOrchestrator = (*TemporalOrderWorkflows)(nil)
	_ ports.WorkflowOrchestrator = (*InlineOrderWorkflows)(nil)
)

// TemporalOrderWorkflows starts order workflows on a Temporal cluster.
type TemporalOrderWorkflows struct {
	client    client.Client
	taskQueue string
}

// NewTemporalOrderWorkflows wires a Temporal client into the orchestrator.
func NewTemporalOrderWorkflows(c client.Client) *TemporalOrderWorkflows {
	return &TemporalOrderWorkflows{client: c, taskQueue: orderworkflows.OrdersTaskQueue}
}

// PlaceOrder starts the placement workflow and waits for the order it creates.
// A repeated idempotency key joins the running workflow; once that run has
// closed, the new run's CreateOrder activity replays the stored order.
func (o *TemporalOrderWorkflows) PlaceOrder(ctx context.Context, cart ports.CartSnapshot) (*domain.Order, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal order workflows not configured")
	}
	traceComponent := workflowTraceComponent(ctx)
	workflowID := buildPlacementWorkflowID(cart, traceComponent)
	return o.execute(ctx, workflowID, strings.TrimSpace(cart.IdempotencyKey) != "",
		orderworkflows.OrderPlacementWorkflowName,
		orderworkflows.OrderPlacementWorkflowInput{Cart: cart, TraceID: traceComponent})
}

// TransitionOrder starts the transition workflow. One workflow per order and
// target status may run at a time; a duplicate request joins the running one.
func (o *TemporalOrderWorkflows) TransitionOrder(ctx context.Context, input ports.TransitionInput) (*domain.Order, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal order workflows not configured")
	}
	traceComponent := workflowTraceComponent(ctx)
	workflowID := fmt.Sprintf("order-transition-%s-%s", input.OrderID, strings.ToLower(string(input.Target)))
	return o.execute(ctx, workflowID, true,
		orderworkflows.OrderTransitionWorkflowName,
		orderworkflows.OrderTransitionWorkflowInput{Command: input, TraceID: traceComponent})
}

func (o *TemporalOrderWorkflows) execute(ctx context.Context, workflowID string, joinExisting bool, workflowName string, input any) (*domain.Order, error) {
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: o.taskQueue,
	}
	run, err := o.client.ExecuteWorkflow(ctx, options, workflowName, input)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) && joinExisting {
			run = o.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId)
		} else {
			return nil, err
		}
	}
	var order domain.Order
	if err := run.Get(ctx, &order); err != nil {
		return nil, fromWorkflowError(err)
	}
	return &order, nil
}

// InlineOrderWorkflows executes the service directly without Temporal, useful for tests or dev fallbacks.
type InlineOrderWorkflows struct {
	service ports.Service
}

// NewInlineOrderWorkflows wraps the orders service for synchronous execution.
func NewInlineOrderWorkflows(service ports.Service) *InlineOrderWorkflows {
	return &InlineOrderWorkflows{service: service}
}

// PlaceOrder delegates to the application service without durable orchestration.
func (o *InlineOrderWorkflows) PlaceOrder(ctx context.Context, cart ports.CartSnapshot) (*domain.Order, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline order workflows not configured")
	}
	return o.service.CreateOrder(ctx, cart)
}

// TransitionOrder delegates to the application service without durable orchestration.
func (o *InlineOrderWorkflows) TransitionOrder(ctx context.Context, input ports.TransitionInput) (*domain.Order, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline order workflows not configured")
	}
	return o.service.TransitionOrder(ctx, input)
}

// fromWorkflowError restores the error kind carried as the application error type.
func fromWorkflowError(err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return errkind.WithKind(errkind.Kind(appErr.Type()), err)
	}
	return err
}

func buildPlacementWorkflowID(cart ports.CartSnapshot, traceComponent string) string {
	if key := strings.TrimSpace(cart.IdempotencyKey); key != "" {
		return fmt.Sprintf("order-placement-idem-%s", hashIdempotencyKey(key))
	}
	return fmt.Sprintf("order-placement-%s-%s", cart.UserID, traceComponent)
}

func hashIdempotencyKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func workflowTraceComponent(ctx context.Context) string {
	traceComponent := workflowTraceID(ctx)
	if traceComponent != "" {
		return traceComponent
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}

func workflowTraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	traceID := spanCtx.TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}
