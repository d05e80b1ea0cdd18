package ports

import (
	"context"

	"github.com/Apurer/commerce-engine/internal/domains/reviews/domain"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

var (
	ErrNotFound         = errkind.New(errkind.NotFound, "review not found")
	ErrDuplicateReview  = errkind.New(errkind.DuplicateReview, "user already reviewed this product")
	ErrConcurrentUpdate = errkind.New(errkind.Conflict, "review was moderated concurrently")
)

// Repository persists reviews. A user holds at most one review per product.
// Helpful votes and status changes are conditional single-row writes.
type Repository interface {
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	ListByProduct(ctx context.Context, productID string, status domain.Status) ([]*domain.Review, error)
	// SetStatus moves the review to next only while it is still in expected.
	SetStatus(ctx context.Context, id string, expected, next domain.Status) error
	SetResponse(ctx context.Context, id string, response domain.Response) error
	// AddHelpful records userID's vote and reports false when it already existed.
	AddHelpful(ctx context.Context, id, userID string) (bool, error)
	// RemoveHelpful withdraws userID's vote and reports false when there was none.
	RemoveHelpful(ctx context.Context, id, userID string) (bool, error)
	Delete(ctx context.Context, id string) (*domain.Review, error)
	ApprovedRatings(ctx context.Context, productID string) ([]int, error)
}
