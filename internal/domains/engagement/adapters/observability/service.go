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

	"github.com/Apurer/commerce-engine/internal/domains/engagement/domain"
	"github.com/Apurer/commerce-engine/internal/domains/engagement/ports"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

const tracerName = "github.com/Apurer/commerce-engine/internal/domains/engagement/adapters/observability/service"

// Service decorates the engagement service with tracing, logging, and metrics.
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

// New wraps the core engagement service.
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

func (s *Service) CreatePost(ctx context.Context, input ports.CreatePostInput) (*domain.Post, error) {
	ctx, span := s.tracer.Start(ctx, "EngagementService.CreatePost", trace.WithAttributes(attribute.String("author.id", input.AuthorID)))
	defer span.End()

	result, err := s.inner.CreatePost(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to create post", slog.String("author.id", input.AuthorID))
	}
	span.SetAttributes(attribute.String("post.id", result.ID), attribute.String("post.slug", result.Slug))
	s.logInfo(ctx, "post created", slog.String("post.id", result.ID), slog.String("post.slug", result.Slug))
	return result, nil
}

func (s *Service) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	ctx, span := s.tracer.Start(ctx, "EngagementService.GetPost", trace.WithAttributes(attribute.String("post.id", id)))
	defer span.End()

	result, err := s.inner.GetPost(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load post", slog.String("post.id", id))
	}
	return result, nil
}

func (s *Service) GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	ctx, span := s.tracer.Start(ctx, "EngagementService.GetPostBySlug", trace.WithAttributes(attribute.String("post.slug", slug)))
	defer span.End()

	result, err := s.inner.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load post", slog.String("post.slug", slug))
	}
	return result, nil
}

func (s *Service) ChangePostStatus(ctx context.Context, id string, status domain.PostStatus) (*domain.Post, error) {
	ctx, span := s.tracer.Start(ctx, "EngagementService.ChangePostStatus",
		trace.WithAttributes(attribute.String("post.id", id), attribute.String("post.status", string(status))))
	defer span.End()

	result, err := s.inner.ChangePostStatus(ctx, id, status)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to change post status", slog.String("post.id", id))
	}
	s.logInfo(ctx, "post status changed", slog.String("post.id", id), slog.String("status", string(result.Status)))
	return result, nil
}

func (s *Service) LikePost(ctx context.Context, postID, userID string) (ports.LikeResult, error) {
	ctx, span := s.tracer.Start(ctx, "EngagementService.LikePost",
		trace.WithAttributes(attribute.String("post.id", postID), attribute.String("user.id", userID)))
	defer span.End()

	result, err := s.inner.LikePost(ctx, postID, userID)
	if err != nil {
		return result, s.handleError(ctx, span, err, "failed to like post", slog.String("post.id", postID))
	}
	span.SetAttributes(attribute.Bool("like.changed", result.Changed), attribute.Int64("post.like_count", result.LikeCount))
	if result.Changed {
		s.metrics.recordLike(ctx, "added")
	}
	return result, nil
}

func (s *Service) UnlikePost(ctx context.Context, postID, userID string) (ports.LikeResult, error) {
	ctx, span := s.tracer.Start(ctx, "EngagementService.UnlikePost",
		trace.WithAttributes(attribute.String("post.id", postID), attribute.String("user.id", userID)))
	defer span.End()

	result, err := s.inner.UnlikePost(ctx, postID, userID)
	if err != nil {
		return result, s.handleError(ctx, span, err, "failed to unlike post", slog.String("post.id", postID))
	}
	span.SetAttributes(attribute.Bool("like.changed", result.Changed), attribute.Int64("post.like_count", result.LikeCount))
	if result.Changed {
		s.metrics.recordLike(ctx, "removed")
	}
	return result, nil
}

func (s *Service) AddComment(ctx context.Context, input ports.AddCommentInput) (*domain.Comment, error) {
	ctx, span := s.tracer.Start(ctx, "EngagementService.AddComment",
		trace.WithAttributes(attribute.String("post.id", input.PostID), attribute.Bool("comment.reply", input.ParentID != "")))
	defer span.End()

	result, err := s.inner.AddComment(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to add comment", slog.String("post.id", input.PostID))
	}
	s.metrics.recordComment(ctx, "added")
	s.logInfo(ctx, "comment added", slog.String("comment.id", result.ID), slog.String("post.id", result.PostID))
	return result, nil
}

func (s *Service) RemoveComment(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "EngagementService.RemoveComment", trace.WithAttributes(attribute.String("comment.id", id)))
	defer span.End()

	if err := s.inner.RemoveComment(ctx, id); err != nil {
		return s.handleError(ctx, span, err, "failed to remove comment", slog.String("comment.id", id))
	}
	s.metrics.recordComment(ctx, "removed")
	s.logInfo(ctx, "comment removed", slog.String("comment.id", id))
	return nil
}

func (s *Service) ListComments(ctx context.Context, postID string) ([]*domain.Comment, error) {
	ctx, span := s.tracer.Start(ctx, "EngagementService.ListComments", trace.WithAttributes(attribute.String("post.id", postID)))
	defer span.End()

	result, err := s.inner.ListComments(ctx, postID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list comments", slog.String("post.id", postID))
	}
	span.SetAttributes(attribute.Int("comments.count", len(result)))
	return result, nil
}

func (s *Service) ListPostIDs(ctx context.Context) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "EngagementService.ListPostIDs")
	defer span.End()

	result, err := s.inner.ListPostIDs(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list posts")
	}
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
	likes    metric.Int64Counter
	comments metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	likes, _ := m.Int64Counter("engagement.service.likes", metric.WithDescription("Number of likes added or removed"))
	comments, _ := m.Int64Counter("engagement.service.comments", metric.WithDescription("Number of comments added or removed"))
	return serviceMetrics{likes: likes, comments: comments}
}

func (m serviceMetrics) recordLike(ctx context.Context, action string) {
	if m.likes != nil {
		m.likes.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}
}

func (m serviceMetrics) recordComment(ctx context.Context, action string) {
	if m.comments != nil {
		m.comments.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}
}

var _ ports.Service = (*Service)(nil)
