package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

const tracerName = "github.com/Apurer/commerce-engine/internal/domains/orders/adapters/observability/service"

// Service decorates the orders service with tracing, logging, and metrics.
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

// New wraps the core orders service.
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

func (s *Service) CreateOrder(ctx context.Context, cart ports.CartSnapshot) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder",
		trace.WithAttributes(attribute.String("user.id", cart.UserID), attribute.Int("order.lines", len(cart.Items))))
	defer span.End()

	s.logInfo(ctx, "creating order", slog.String("user.id", cart.UserID), slog.Int("order.lines", len(cart.Items)))
	result, err := s.inner.CreateOrder(ctx, cart)
	if err != nil {
		s.metrics.recordRejected(ctx, err)
		return nil, s.handleError(ctx, span, err, "failed to create order", slog.String("user.id", cart.UserID))
	}
	span.SetAttributes(attribute.String("order.id", result.ID), attribute.String("order.number", result.OrderNumber))
	s.metrics.recordCreated(ctx, result.Currency)
	s.logInfo(ctx, "order created",
		slog.String("order.id", result.ID),
		slog.String("order.number", result.OrderNumber),
		slog.String("order.total", result.Total.StringFixed(2)))
	return result, nil
}

func (s *Service) TransitionOrder(ctx context.Context, input ports.TransitionInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.TransitionOrder",
		trace.WithAttributes(attribute.String("order.id", input.OrderID), attribute.String("order.target_status", string(input.Target))))
	defer span.End()

	s.logInfo(ctx, "transitioning order", slog.String("order.id", input.OrderID), slog.String("target", string(input.Target)))
	result, err := s.inner.TransitionOrder(ctx, input)
	if err != nil {
		s.metrics.recordRejected(ctx, err)
		return result, s.handleError(ctx, span, err, "failed to transition order",
			slog.String("order.id", input.OrderID), slog.String("target", string(input.Target)))
	}
	s.metrics.recordTransition(ctx, result.Status)
	s.logInfo(ctx, "order transitioned", slog.String("order.id", result.ID), slog.String("status", string(result.Status)))
	return result, nil
}

func (s *Service) RecordPayment(ctx context.Context, input ports.PaymentInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.RecordPayment",
		trace.WithAttributes(attribute.String("order.id", input.OrderID), attribute.String("payment.status", string(input.Status))))
	defer span.End()

	result, err := s.inner.RecordPayment(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to record payment", slog.String("order.id", input.OrderID))
	}
	s.logInfo(ctx, "payment recorded", slog.String("order.id", result.ID), slog.String("payment.status", string(result.Payment.Status)))
	return result, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	result, err := s.inner.GetOrder(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.String("order.id", id))
	}
	return result, nil
}

func (s *Service) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrderByNumber", trace.WithAttributes(attribute.String("order.number", orderNumber)))
	defer span.End()

	result, err := s.inner.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.String("order.number", orderNumber))
	}
	return result, nil
}

func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrdersByUser", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	result, err := s.inner.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list orders", slog.String("user.id", userID))
	}
	span.SetAttributes(attribute.Int("orders.count", len(result)))
	return result, nil
}

func (s *Service) HasDeliveredPurchase(ctx context.Context, userID, productID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.HasDeliveredPurchase",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("product.id", productID)))
	defer span.End()

	ok, err := s.inner.HasDeliveredPurchase(ctx, userID, productID)
	if err != nil {
		return false, s.handleError(ctx, span, err, "failed to check purchase history", slog.String("user.id", userID))
	}
	return ok, nil
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
	ordersCreated  metric.Int64Counter
	transitions    metric.Int64Counter
	ordersRejected metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	created, _ := m.Int64Counter("orders.service.orders_created", metric.WithDescription("Number of orders created"))
	transitions, _ := m.Int64Counter("orders.service.transitions", metric.WithDescription("Number of applied order status transitions"))
	rejected, _ := m.Int64Counter("orders.service.rejections", metric.WithDescription("Number of order operations rejected, by error kind"))
	return serviceMetrics{ordersCreated: created, transitions: transitions, ordersRejected: rejected}
}

func (m serviceMetrics) recordCreated(ctx context.Context, currency string) {
	if m.ordersCreated != nil {
		m.ordersCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("order.currency", currency)))
	}
}

func (m serviceMetrics) recordTransition(ctx context.Context, status domain.Status) {
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", string(status))))
	}
}

func (m serviceMetrics) recordRejected(ctx context.Context, err error) {
	if m.ordersRejected != nil {
		m.ordersRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("error.kind", string(errkind.Of(err)))))
	}
}

var _ ports.Service = (*Service)(nil)
