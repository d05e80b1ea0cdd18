package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	"github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

const tracerName = "github.com/Apurer/commerce-engine/internal/domains/catalog/adapters/observability/service"

// Service decorates the catalog service with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wraps the core catalog service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return s
}

func (s *Service) CreateProduct(ctx context.Context, input ports.CreateProductInput) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.CreateProduct",
		trace.WithAttributes(attribute.String("product.sku", input.SKU), attribute.Int("product.variants", len(input.Variants))))
	defer span.End()

	result, err := s.inner.CreateProduct(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to create product", slog.String("product.sku", input.SKU))
	}
	span.SetAttributes(attribute.String("product.id", result.ID), attribute.String("product.slug", result.Slug))
	s.logInfo(ctx, "product created",
		slog.String("product.id", result.ID),
		slog.String("product.slug", result.Slug),
		slog.String("product.sku", result.SKU))
	return result, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.GetProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	result, err := s.inner.GetProduct(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load product", slog.String("product.id", id))
	}
	return result, nil
}

func (s *Service) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.GetProductBySlug", trace.WithAttributes(attribute.String("product.slug", slug)))
	defer span.End()

	result, err := s.inner.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load product", slog.String("product.slug", slug))
	}
	return result, nil
}

func (s *Service) ChangeStatus(ctx context.Context, id string, status domain.Status) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.ChangeStatus",
		trace.WithAttributes(attribute.String("product.id", id), attribute.String("product.status", string(status))))
	defer span.End()

	result, err := s.inner.ChangeStatus(ctx, id, status)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to change product status", slog.String("product.id", id))
	}
	s.logInfo(ctx, "product status changed", slog.String("product.id", id), slog.String("status", string(result.Status)))
	return result, nil
}

func (s *Service) ReserveStock(ctx context.Context, key domain.StockKey, quantity int64) error {
	ctx, span := s.startStock(ctx, "CatalogService.ReserveStock", key, quantity)
	defer span.End()

	err := s.inner.ReserveStock(ctx, key, quantity)
	s.metrics.recordReservation(ctx, err)
	if err != nil {
		return s.handleError(ctx, span, err, "failed to reserve stock", stockAttrs(key, quantity)...)
	}
	return nil
}

func (s *Service) ReleaseStock(ctx context.Context, key domain.StockKey, quantity int64) error {
	ctx, span := s.startStock(ctx, "CatalogService.ReleaseStock", key, quantity)
	defer span.End()

	if err := s.inner.ReleaseStock(ctx, key, quantity); err != nil {
		return s.handleError(ctx, span, err, "failed to release stock", stockAttrs(key, quantity)...)
	}
	return nil
}

func (s *Service) Restock(ctx context.Context, key domain.StockKey, quantity int64) (*ports.StockStatus, error) {
	ctx, span := s.startStock(ctx, "CatalogService.Restock", key, quantity)
	defer span.End()

	result, err := s.inner.Restock(ctx, key, quantity)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to restock", stockAttrs(key, quantity)...)
	}
	s.logInfo(ctx, "stock replenished", append(stockAttrs(key, quantity), slog.Int64("stock.quantity", result.Inventory.Quantity))...)
	return result, nil
}

func (s *Service) StockStatus(ctx context.Context, key domain.StockKey) (*ports.StockStatus, error) {
	ctx, span := s.startStock(ctx, "CatalogService.StockStatus", key, 0)
	defer span.End()

	result, err := s.inner.StockStatus(ctx, key)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to read stock", stockAttrs(key, 0)...)
	}
	span.SetAttributes(attribute.Bool("stock.in_stock", result.InStock), attribute.Bool("stock.low", result.LowStock))
	return result, nil
}

func (s *Service) RecordView(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "CatalogService.RecordView", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	if err := s.inner.RecordView(ctx, id); err != nil {
		return s.handleError(ctx, span, err, "failed to record view", slog.String("product.id", id))
	}
	return nil
}

func (s *Service) RecordSale(ctx context.Context, id string, quantity int64) error {
	ctx, span := s.tracer.Start(ctx, "CatalogService.RecordSale",
		trace.WithAttributes(attribute.String("product.id", id), attribute.Int64("sale.quantity", quantity)))
	defer span.End()

	if err := s.inner.RecordSale(ctx, id, quantity); err != nil {
		return s.handleError(ctx, span, err, "failed to record sale", slog.String("product.id", id))
	}
	return nil
}

func (s *Service) UpdateRating(ctx context.Context, id string, average float64, count int64) error {
	ctx, span := s.tracer.Start(ctx, "CatalogService.UpdateRating",
		trace.WithAttributes(
			attribute.String("product.id", id),
			attribute.Float64("rating.average", average),
			attribute.Int64("rating.count", count)))
	defer span.End()

	if err := s.inner.UpdateRating(ctx, id, average, count); err != nil {
		return s.handleError(ctx, span, err, "failed to update rating", slog.String("product.id", id))
	}
	s.logInfo(ctx, "product rating updated",
		slog.String("product.id", id),
		slog.Float64("rating.average", average),
		slog.Int64("rating.count", count))
	return nil
}

func (s *Service) ListProductIDs(ctx context.Context) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.ListProductIDs")
	defer span.End()

	result, err := s.inner.ListProductIDs(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list products")
	}
	span.SetAttributes(attribute.Int("products.count", len(result)))
	return result, nil
}

func (s *Service) startStock(ctx context.Context, name string, key domain.StockKey, quantity int64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("product.id", key.ProductID)}
	if key.VariantID != "" {
		attrs = append(attrs, attribute.String("variant.id", key.VariantID))
	}
	if quantity != 0 {
		attrs = append(attrs, attribute.Int64("stock.delta", quantity))
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func stockAttrs(key domain.StockKey, quantity int64) []slog.Attr {
	attrs := []slog.Attr{slog.String("product.id", key.ProductID)}
	if key.VariantID != "" {
		attrs = append(attrs, slog.String("variant.id", key.VariantID))
	}
	if quantity != 0 {
		attrs = append(attrs, slog.Int64("stock.delta", quantity))
	}
	return attrs
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	level := slog.LevelError
	if errkind.ClientCorrectable(err) {
		level = slog.LevelWarn
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()), slog.String("error.kind", string(errkind.Of(err))))
	}
	s.logger.LogAttrs(ctx, level, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

type serviceMetrics struct {
	reservations metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	reservations, _ := m.Int64Counter("catalog.service.stock_reservations",
		metric.WithDescription("Number of stock reservations by outcome"))
	return serviceMetrics{reservations: reservations}
}

func (m serviceMetrics) recordReservation(ctx context.Context, err error) {
	if m.reservations == nil {
		return
	}
	result := "reserved"
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		result = "insufficient"
	case err != nil:
		result = "failed"
	}
	m.reservations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

var _ ports.Service = (*Service)(nil)
