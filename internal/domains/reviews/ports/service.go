package ports

import (
	"context"

	"github.com/Apurer/commerce-engine/internal/domains/reviews/domain"
)

// ProductDirectory confirms a product exists before it can be reviewed.
type ProductDirectory interface {
	ProductExists(ctx context.Context, productID string) (bool, error)
}

// PurchaseVerifier reports whether a user received a product in a delivered order.
type PurchaseVerifier interface {
	HasDeliveredPurchase(ctx context.Context, userID, productID string) (bool, error)
}

// SubmitReviewInput carries a new review.
type SubmitReviewInput struct {
	ProductID string   `json:"productId"`
	UserID    string   `json:"userId"`
	OrderID   string   `json:"orderId,omitempty"`
	Rating    int      `json:"rating"`
	Title     string   `json:"title,omitempty"`
	Comment   string   `json:"comment,omitempty"`
	Images    []string `json:"images,omitempty"`
}

// RespondInput carries a merchant response.
type RespondInput struct {
	ReviewID    string `json:"reviewId"`
	ResponderID string `json:"responderId"`
	Comment     string `json:"comment"`
}

// HelpfulResult reports the helpful count after a vote and whether the vote changed it.
type HelpfulResult struct {
	Helpful int64 `json:"helpful"`
	Changed bool  `json:"changed"`
}

// Service exposes review use cases.
type Service interface {
	SubmitReview(ctx context.Context, input SubmitReviewInput) (*domain.Review, error)
	ApproveReview(ctx context.Context, id string) (*domain.Review, error)
	RejectReview(ctx context.Context, id string) (*domain.Review, error)
	DeleteReview(ctx context.Context, id string) error
	MarkHelpful(ctx context.Context, id, userID string) (HelpfulResult, error)
	UnmarkHelpful(ctx context.Context, id, userID string) (HelpfulResult, error)
	RespondToReview(ctx context.Context, input RespondInput) (*domain.Review, error)
	GetReview(ctx context.Context, id string) (*domain.Review, error)
	ListProductReviews(ctx context.Context, productID string, status domain.Status) ([]*domain.Review, error)
}
