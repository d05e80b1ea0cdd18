package observability

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	"github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
)

type stubService struct {
	ports.Service
	reserveErr error
}

func (s stubService) ReserveStock(context.Context, domain.StockKey, int64) error {
	return s.reserveErr
}

func reservationsByResult(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || m.Name != "catalog.service.stock_reservations" {
				continue
			}
			for _, dp := range sum.DataPoints {
				result, _ := dp.Attributes.Value("result")
				out[result.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestService_InsufficientStockIsWarningAndCounted(t *testing.T) {
	var buf bytes.Buffer
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	key := domain.StockKey{ProductID: "prod-1", VariantID: "var-1"}

	failing := New(stubService{reserveErr: fmt.Errorf("reserve prod-1: %w", domain.ErrInsufficientStock)},
		WithLogger(logger), WithMeter(meter))
	err := failing.ReserveStock(context.Background(), key, 3)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	require.NoError(t, New(stubService{}, WithMeter(meter)).ReserveStock(context.Background(), key, 1))

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error.kind=insufficient_stock")
	assert.Contains(t, buf.String(), "variant.id=var-1")
	assert.Equal(t, map[string]int64{"insufficient": 1, "reserved": 1}, reservationsByResult(t, reader))
}
