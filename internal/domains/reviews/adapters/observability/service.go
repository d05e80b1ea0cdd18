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

	"github.com/Apurer/commerce-engine/internal/domains/reviews/domain"
	"github.com/Apurer/commerce-engine/internal/domains/reviews/ports"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

const tracerName = "github.com/Apurer/commerce-engine/internal/domains/reviews/adapters/observability/service"

// Service decorates the reviews service with tracing, logging, and metrics.
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

// New wraps the core reviews service.
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

func (s *Service) SubmitReview(ctx context.Context, input ports.SubmitReviewInput) (*domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.SubmitReview",
		trace.WithAttributes(attribute.String("product.id", input.ProductID), attribute.String("user.id", input.UserID)))
	defer span.End()

	result, err := s.inner.SubmitReview(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to submit review",
			slog.String("product.id", input.ProductID), slog.String("user.id", input.UserID))
	}
	span.SetAttributes(attribute.String("review.id", result.ID), attribute.Bool("review.verified", result.Verified))
	s.metrics.recordSubmitted(ctx, result.Verified)
	s.logInfo(ctx, "review submitted", slog.String("review.id", result.ID), slog.String("product.id", result.ProductID))
	return result, nil
}

func (s *Service) ApproveReview(ctx context.Context, id string) (*domain.Review, error) {
	return s.moderate(ctx, "ReviewService.ApproveReview", id, domain.StatusApproved, s.inner.ApproveReview)
}

func (s *Service) RejectReview(ctx context.Context, id string) (*domain.Review, error) {
	return s.moderate(ctx, "ReviewService.RejectReview", id, domain.StatusRejected, s.inner.RejectReview)
}

func (s *Service) moderate(ctx context.Context, spanName, id string, target domain.Status, call func(context.Context, string) (*domain.Review, error)) (*domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("review.id", id), attribute.String("review.target_status", string(target))))
	defer span.End()

	result, err := call(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to moderate review",
			slog.String("review.id", id), slog.String("target", string(target)))
	}
	s.metrics.recordModerated(ctx, target)
	s.logInfo(ctx, "review moderated",
		slog.String("review.id", id),
		slog.String("product.id", result.ProductID),
		slog.String("status", string(result.Status)))
	return result, nil
}

func (s *Service) DeleteReview(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "ReviewService.DeleteReview", trace.WithAttributes(attribute.String("review.id", id)))
	defer span.End()

	if err := s.inner.DeleteReview(ctx, id); err != nil {
		return s.handleError(ctx, span, err, "failed to delete review", slog.String("review.id", id))
	}
	s.logInfo(ctx, "review deleted", slog.String("review.id", id))
	return nil
}

func (s *Service) MarkHelpful(ctx context.Context, id, userID string) (ports.HelpfulResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.MarkHelpful",
		trace.WithAttributes(attribute.String("review.id", id), attribute.String("user.id", userID)))
	defer span.End()

	result, err := s.inner.MarkHelpful(ctx, id, userID)
	if err != nil {
		return result, s.handleError(ctx, span, err, "failed to mark review helpful", slog.String("review.id", id))
	}
	span.SetAttributes(attribute.Int64("review.helpful", result.Helpful), attribute.Bool("vote.changed", result.Changed))
	return result, nil
}

func (s *Service) UnmarkHelpful(ctx context.Context, id, userID string) (ports.HelpfulResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.UnmarkHelpful",
		trace.WithAttributes(attribute.String("review.id", id), attribute.String("user.id", userID)))
	defer span.End()

	result, err := s.inner.UnmarkHelpful(ctx, id, userID)
	if err != nil {
		return result, s.handleError(ctx, span, err, "failed to unmark review helpful", slog.String("review.id", id))
	}
	span.SetAttributes(attribute.Int64("review.helpful", result.Helpful), attribute.Bool("vote.changed", result.Changed))
	return result, nil
}

func (s *Service) RespondToReview(ctx context.Context, input ports.RespondInput) (*domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.RespondToReview", trace.WithAttributes(attribute.String("review.id", input.ReviewID)))
	defer span.End()

	result, err := s.inner.RespondToReview(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to respond to review", slog.String("review.id", input.ReviewID))
	}
	s.logInfo(ctx, "review response stored", slog.String("review.id", result.ID), slog.String("responder.id", input.ResponderID))
	return result, nil
}

func (s *Service) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.GetReview", trace.WithAttributes(attribute.String("review.id", id)))
	defer span.End()

	result, err := s.inner.GetReview(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load review", slog.String("review.id", id))
	}
	return result, nil
}

func (s *Service) ListProductReviews(ctx context.Context, productID string, status domain.Status) ([]*domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.ListProductReviews",
		trace.WithAttributes(attribute.String("product.id", productID), attribute.String("review.status", string(status))))
	defer span.End()

	result, err := s.inner.ListProductReviews(ctx, productID, status)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list reviews", slog.String("product.id", productID))
	}
	span.SetAttributes(attribute.Int("reviews.count", len(result)))
	return result, nil
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
	submitted metric.Int64Counter
	moderated metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	submitted, _ := m.Int64Counter("reviews.service.submitted", metric.WithDescription("Number of reviews submitted"))
	moderated, _ := m.Int64Counter("reviews.service.moderated", metric.WithDescription("Number of moderation decisions applied"))
	return serviceMetrics{submitted: submitted, moderated: moderated}
}

func (m serviceMetrics) recordSubmitted(ctx context.Context, verified bool) {
	if m.submitted != nil {
		m.submitted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("review.verified", verified)))
	}
}

func (m serviceMetrics) recordModerated(ctx context.Context, status domain.Status) {
	if m.moderated != nil {
		m.moderated.Add(ctx, 1, metric.WithAttributes(attribute.String("review.status", string(status))))
	}
}

var _ ports.Service = (*Service)(nil)
