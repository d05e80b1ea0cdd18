package workflows

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	orderworkflows "github.com/Apurer/commerce-engine/internal/platform/temporal/workflows/orders"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

func fillOrder(order domain.Order) func(mock.Arguments) {
	return func(args mock.Arguments) {
		*args.Get(1).(*domain.Order) = order
	}
}

func TestBuildPlacementWorkflowID(t *testing.T) {
	cart := ports.CartSnapshot{UserID: "user-1", IdempotencyKey: " checkout-42 "}
	first := buildPlacementWorkflowID(cart, "trace-a")
	second := buildPlacementWorkflowID(cart, "trace-b")
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "order-placement-idem-"))
	assert.Len(t, strings.TrimPrefix(first, "order-placement-idem-"), 16)

	cart.IdempotencyKey = ""
	assert.Equal(t, "order-placement-user-1-trace-a", buildPlacementWorkflowID(cart, "trace-a"))
}

func TestTemporalOrderWorkflows_PlaceOrder(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	cart := ports.CartSnapshot{UserID: "user-1", IdempotencyKey: "checkout-42"}

	c.On("ExecuteWorkflow", mock.Anything,
		mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.TaskQueue == orderworkflows.OrdersTaskQueue && o.ID == buildPlacementWorkflowID(cart, "")
		}),
		orderworkflows.OrderPlacementWorkflowName,
		mock.AnythingOfType("orders.OrderPlacementWorkflowInput"),
	).Return(run, nil)
	run.On("Get", mock.Anything, mock.Anything).Run(fillOrder(domain.Order{ID: "ord-1"})).Return(nil)

	order, err := NewTemporalOrderWorkflows(c).PlaceOrder(context.Background(), cart)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
	c.AssertExpectations(t)
}

func TestTemporalOrderWorkflows_JoinsRunningTransition(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	input := ports.TransitionInput{OrderID: "ord-1", Target: domain.StatusCancelled}
	workflowID := "order-transition-ord-1-cancelled"

	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, orderworkflows.OrderTransitionWorkflowName, mock.Anything).
		Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("running", "req-1", "run-1"))
	c.On("GetWorkflow", mock.Anything, workflowID, "run-1").Return(run)
	run.On("Get", mock.Anything, mock.Anything).
		Run(fillOrder(domain.Order{ID: "ord-1", Status: domain.StatusCancelled})).Return(nil)

	order, err := NewTemporalOrderWorkflows(c).TransitionOrder(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, order.Status)
	c.AssertExpectations(t)
}

func TestTemporalOrderWorkflows_RestoresErrorKind(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(run, nil)
	run.On("Get", mock.Anything, mock.Anything).
		Return(temporal.NewNonRetryableApplicationError("insufficient stock", string(errkind.InsufficientStock), nil))

	_, err := NewTemporalOrderWorkflows(c).PlaceOrder(context.Background(), ports.CartSnapshot{UserID: "user-1"})
	require.Error(t, err)
	assert.Equal(t, errkind.InsufficientStock, errkind.Of(err))
	assert.True(t, errkind.ClientCorrectable(err))
}

type stubService struct {
	ports.Service
	created    ports.CartSnapshot
	transition ports.TransitionInput
}

func (s *stubService) CreateOrder(_ context.Context, cart ports.CartSnapshot) (*domain.Order, error) {
	s.created = cart
	return &domain.Order{ID: "ord-1"}, nil
}

func (s *stubService) TransitionOrder(_ context.Context, input ports.TransitionInput) (*domain.Order, error) {
	s.transition = input
	return &domain.Order{ID: input.OrderID, Status: input.Target}, nil
}

func TestInlineOrderWorkflows_Delegates(t *testing.T) {
	svc := &stubService{}
	inline := NewInlineOrderWorkflows(svc)

	order, err := inline.PlaceOrder(context.Background(), ports.CartSnapshot{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
	assert.Equal(t, "user-1", svc.created.UserID)

	order, err = inline.TransitionOrder(context.Background(), ports.TransitionInput{OrderID: "ord-1", Target: domain.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, order.Status)

	_, err = NewInlineOrderWorkflows(nil).PlaceOrder(context.Background(), ports.CartSnapshot{})
	require.Error(t, err)
}
