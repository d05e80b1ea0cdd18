package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
)

type stubService struct {
	ports.Service
	order *domain.Order
	err   error
}

func (s stubService) CreateOrder(context.Context, ports.CartSnapshot) (*domain.Order, error) {
	return s.order, s.err
}

func (s stubService) TransitionOrder(context.Context, ports.TransitionInput) (*domain.Order, error) {
	return s.order, s.err
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestService_RejectionLoggedAsWarningAndCounted(t *testing.T) {
	var buf bytes.Buffer
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	svc := New(stubService{err: domain.ErrIllegalTransition},
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		WithMeter(meter))

	_, err := svc.TransitionOrder(context.Background(), ports.TransitionInput{OrderID: "ord-1", Target: domain.StatusShipped})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error.kind=illegal_transition")
	assert.Equal(t, int64(1), counterTotal(t, reader, "orders.service.rejections"))
}

func TestService_CreatedOrderCounted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	order := &domain.Order{ID: "ord-1", OrderNumber: "ORD-1-ABCDEF", Currency: "USD"}
	svc := New(stubService{order: order}, WithMeter(meter))

	got, err := svc.CreateOrder(context.Background(), ports.CartSnapshot{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, order, got)
	assert.Equal(t, int64(1), counterTotal(t, reader, "orders.service.orders_created"))
	assert.Zero(t, counterTotal(t, reader, "orders.service.rejections"))
}
