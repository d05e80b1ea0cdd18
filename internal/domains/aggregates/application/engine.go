package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Apurer/commerce-engine/internal/domains/aggregates/domain"
	"github.com/Apurer/commerce-engine/internal/domains/aggregates/ports"
)

var (
	_ ports.RatingEvents     = (*Engine)(nil)
	_ ports.EngagementEvents = (*Engine)(nil)
)

// Engine keeps denormalized ratings and post counters consistent with the
// records they summarize. Ratings are always recomputed from a full rescan;
// counters move by atomic single-step adjustments.
type Engine struct {
	ratings  ports.ApprovedRatings
	writer   ports.RatingWriter
	counters ports.CounterStore
	source   ports.CounterSource
	logger   *slog.Logger
	clamped  metric.Int64Counter
}

// Option customises the engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMeter records clamped counter adjustments.
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) {
		if m == nil {
			return
		}
		e.clamped, _ = m.Int64Counter("aggregates.engine.counter_clamped",
			metric.WithDescription("Number of counter decrements clamped at zero"))
	}
}

// NewEngine wires the engine. Any collaborator may be nil when the process
// does not host the matching context; the related events then fail.
func NewEngine(ratings ports.ApprovedRatings, writer ports.RatingWriter, counters ports.CounterStore, source ports.CounterSource, opts ...Option) *Engine {
	e := &Engine{
		ratings:  ratings,
		writer:   writer,
		counters: counters,
		source:   source,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Engine) OnReviewApproved(ctx context.Context, review ports.ReviewRef) error {
	_, err := e.RecomputeProduct(ctx, review.ProductID)
	return err
}

func (e *Engine) OnReviewWithdrawn(ctx context.Context, review ports.ReviewRef) error {
	_, err := e.RecomputeProduct(ctx, review.ProductID)
	return err
}

// RecomputeProduct rescans the approved reviews of a product and stores the
// resulting rating. It is idempotent; concurrent runs converge on the last write.
func (e *Engine) RecomputeProduct(ctx context.Context, productID string) (domain.Rating, error) {
	if e.ratings == nil || e.writer == nil {
		return domain.Rating{}, errors.New("rating recomputation not configured")
	}
	ratings, err := e.ratings.ApprovedRatings(ctx, productID)
	if err != nil {
		return domain.Rating{}, fmt.Errorf("scan approved reviews of %s: %w", productID, err)
	}
	rating := domain.ComputeRating(ratings)
	if err := e.writer.UpdateRating(ctx, productID, rating.Average, rating.Count); err != nil {
		return domain.Rating{}, fmt.Errorf("store rating of %s: %w", productID, err)
	}
	return rating, nil
}

func (e *Engine) OnLikeAdded(ctx context.Context, like ports.LikeRef) error {
	return e.adjust(ctx, like.PostID, ports.CounterLikes, 1)
}

func (e *Engine) OnLikeRemoved(ctx context.Context, like ports.LikeRef) error {
	return e.adjust(ctx, like.PostID, ports.CounterLikes, -1)
}

func (e *Engine) OnCommentAdded(ctx context.Context, comment ports.CommentRef) error {
	return e.adjust(ctx, comment.PostID, ports.CounterComments, 1)
}

func (e *Engine) OnCommentRemoved(ctx context.Context, comment ports.CommentRef) error {
	return e.adjust(ctx, comment.PostID, ports.CounterComments, -1)
}

// PostCounters are the counter values written by RecountPost.
type PostCounters struct {
	Likes    int64
	Comments int64
}

// RecountPost overwrites both post counters with counts of the underlying records.
func (e *Engine) RecountPost(ctx context.Context, postID string) (PostCounters, error) {
	if e.source == nil || e.counters == nil {
		return PostCounters{}, errors.New("post recount not configured")
	}
	likes, err := e.source.CountLikes(ctx, postID)
	if err != nil {
		return PostCounters{}, fmt.Errorf("count likes of %s: %w", postID, err)
	}
	comments, err := e.source.CountComments(ctx, postID)
	if err != nil {
		return PostCounters{}, fmt.Errorf("count comments of %s: %w", postID, err)
	}
	if err := e.counters.SetCounter(ctx, postID, ports.CounterLikes, likes); err != nil {
		return PostCounters{}, err
	}
	if err := e.counters.SetCounter(ctx, postID, ports.CounterComments, comments); err != nil {
		return PostCounters{}, err
	}
	return PostCounters{Likes: likes, Comments: comments}, nil
}

func (e *Engine) adjust(ctx context.Context, postID string, counter ports.Counter, delta int64) error {
	if e.counters == nil {
		return errors.New("post counters not configured")
	}
	result, err := e.counters.AdjustCounter(ctx, postID, counter, delta)
	if err != nil {
		return fmt.Errorf("adjust %s of %s: %w", counter, postID, err)
	}
	if result.Clamped {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "counter clamped at zero, an earlier increment was missed",
			slog.String("post.id", postID),
			slog.String("counter", string(counter)),
			slog.Int64("delta", delta))
		if e.clamped != nil {
			e.clamped.Add(ctx, 1, metric.WithAttributes(attribute.String("counter", string(counter))))
		}
	}
	return nil
}
