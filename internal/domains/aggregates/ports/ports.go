// Package ports declares the contracts of the aggregate recalculation engine:
// the events it reacts to and the stores it reads and writes.
package ports

import (
	"context"

	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

// ErrNotFound signals the product or post owning a counter does not exist.
var ErrNotFound = errkind.New(errkind.NotFound, "aggregate owner not found")

// Counter names a denormalized post counter.
type Counter string

const (
	CounterLikes    Counter = "like_count"
	CounterComments Counter = "comment_count"
)

// Valid reports whether c names a known counter.
func (c Counter) Valid() bool {
	return c == CounterLikes || c == CounterComments
}

// ReviewRef identifies the review whose moderation state changed.
type ReviewRef struct {
	ReviewID  string
	ProductID string
}

// LikeRef identifies a like that was stored or removed.
type LikeRef struct {
	PostID string
	UserID string
}

// CommentRef identifies a comment that was stored or removed.
type CommentRef struct {
	CommentID string
	PostID    string
}

// AdjustResult reports the counter value after an adjustment. Clamped is set
// when the adjustment would have driven the counter below zero.
type AdjustResult struct {
	Value   int64
	Clamped bool
}

// ApprovedRatings lists the ratings of every currently approved review of a product.
type ApprovedRatings interface {
	ApprovedRatings(ctx context.Context, productID string) ([]int, error)
}

// RatingWriter stores a product's rating aggregates.
type RatingWriter interface {
	UpdateRating(ctx context.Context, productID string, average float64, count int64) error
}

// CounterStore applies atomic counter adjustments. Adjust never stores a
// negative value; it stores zero and reports Clamped instead.
type CounterStore interface {
	AdjustCounter(ctx context.Context, postID string, counter Counter, delta int64) (AdjustResult, error)
	SetCounter(ctx context.Context, postID string, counter Counter, value int64) error
}

// CounterSource counts the records underlying each counter.
type CounterSource interface {
	CountLikes(ctx context.Context, postID string) (int64, error)
	CountComments(ctx context.Context, postID string) (int64, error)
}

// RatingEvents is implemented by the engine for the reviews context.
type RatingEvents interface {
	OnReviewApproved(ctx context.Context, review ReviewRef) error
	OnReviewWithdrawn(ctx context.Context, review ReviewRef) error
}

// EngagementEvents is implemented by the engine for the engagement context.
type EngagementEvents interface {
	OnLikeAdded(ctx context.Context, like LikeRef) error
	OnLikeRemoved(ctx context.Context, like LikeRef) error
	OnCommentAdded(ctx context.Context, comment CommentRef) error
	OnCommentRemoved(ctx context.Context, comment CommentRef) error
}
