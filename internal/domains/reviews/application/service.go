package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	aggports "github.com/Apurer/commerce-engine/internal/domains/aggregates/ports"
	"github.com/Apurer/commerce-engine/internal/domains/reviews/domain"
	"github.com/Apurer/commerce-engine/internal/domains/reviews/ports"
	"github.com/Apurer/commerce-engine/internal/shared/identifier"
)

var _ ports.Service = (*Service)(nil)

// Service orchestrates review submission and moderation. Every moderation
// call ends with a rating recomputation for the reviewed product.
type Service struct {
	repo      ports.Repository
	products  ports.ProductDirectory
	purchases ports.PurchaseVerifier
	ratings   aggports.RatingEvents
	now       func() time.Time
	logger    *slog.Logger
}

// Option customises the review service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the review service. products and purchases may be nil, in
// which case product existence and purchase verification are skipped.
func NewService(repo ports.Repository, products ports.ProductDirectory, purchases ports.PurchaseVerifier, ratings aggports.RatingEvents, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		products:  products,
		purchases: purchases,
		ratings:   ratings,
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SubmitReview stores a PENDING review. Pending reviews do not affect the
// product rating until approved.
func (s *Service) SubmitReview(ctx context.Context, input ports.SubmitReviewInput) (*domain.Review, error) {
	now := s.now().UTC()
	review := &domain.Review{
		ID:        identifier.NewID("rev_"),
		ProductID: input.ProductID,
		UserID:    input.UserID,
		OrderID:   strings.TrimSpace(input.OrderID),
		Rating:    input.Rating,
		Title:     input.Title,
		Comment:   input.Comment,
		Images:    append([]string(nil), input.Images...),
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	review.Normalize()
	if err := review.Validate(); err != nil {
		return nil, mapError(err)
	}
	if s.products != nil {
		exists, err := s.products.ProductExists(ctx, review.ProductID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, review.ProductID)
		}
	}
	if s.purchases != nil {
		verified, err := s.purchases.HasDeliveredPurchase(ctx, review.UserID, review.ProductID)
		if err != nil {
			return nil, fmt.Errorf("verify purchase: %w", err)
		}
		review.Verified = verified
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return nil, err
	}
	return review.Clone(), nil
}

func (s *Service) ApproveReview(ctx context.Context, id string) (*domain.Review, error) {
	return s.moderate(ctx, id, domain.StatusApproved)
}

func (s *Service) RejectReview(ctx context.Context, id string) (*domain.Review, error) {
	return s.moderate(ctx, id, domain.StatusRejected)
}

func (s *Service) moderate(ctx context.Context, id string, target domain.Status) (*domain.Review, error) {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.Status != target {
		if err := s.repo.SetStatus(ctx, id, review.Status, target); err != nil {
			return nil, err
		}
		review.Status = target
		review.UpdatedAt = s.now().UTC()
	}
	// Repeated calls still recompute so a failed refresh can be repaired by retrying.
	if err := s.refreshRating(ctx, review, target == domain.StatusApproved); err != nil {
		return nil, err
	}
	return review, nil
}

// DeleteReview removes a review. Deleting an approved review withdraws it from
// the product rating.
func (s *Service) DeleteReview(ctx context.Context, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if removed.Status != domain.StatusApproved {
		return nil
	}
	return s.refreshRating(ctx, removed, false)
}

func (s *Service) refreshRating(ctx context.Context, review *domain.Review, approved bool) error {
	if s.ratings == nil {
		return nil
	}
	ref := aggports.ReviewRef{ReviewID: review.ID, ProductID: review.ProductID}
	var err error
	if approved {
		err = s.ratings.OnReviewApproved(ctx, ref)
	} else {
		err = s.ratings.OnReviewWithdrawn(ctx, ref)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "rating recomputation failed",
			slog.String("review.id", review.ID),
			slog.String("product.id", review.ProductID),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrRatingNotRefreshed, err)
	}
	return nil
}

// MarkHelpful counts userID's vote at most once.
func (s *Service) MarkHelpful(ctx context.Context, id, userID string) (ports.HelpfulResult, error) {
	return s.vote(ctx, id, userID, s.repo.AddHelpful)
}

// UnmarkHelpful withdraws userID's vote; it is a no-op when there was none.
func (s *Service) UnmarkHelpful(ctx context.Context, id, userID string) (ports.HelpfulResult, error) {
	return s.vote(ctx, id, userID, s.repo.RemoveHelpful)
}

func (s *Service) vote(ctx context.Context, id, userID string, apply func(context.Context, string, string) (bool, error)) (ports.HelpfulResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ports.HelpfulResult{}, mapError(domain.ErrInvalidUser)
	}
	changed, err := apply(ctx, id, userID)
	if err != nil {
		return ports.HelpfulResult{}, err
	}
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ports.HelpfulResult{}, err
	}
	return ports.HelpfulResult{Helpful: review.Helpful, Changed: changed}, nil
}

func (s *Service) RespondToReview(ctx context.Context, input ports.RespondInput) (*domain.Review, error) {
	review, err := s.repo.GetByID(ctx, input.ReviewID)
	if err != nil {
		return nil, err
	}
	if err := review.Respond(input.ResponderID, input.Comment, s.now().UTC()); err != nil {
		return nil, mapError(err)
	}
	if err := s.repo.SetResponse(ctx, review.ID, *review.Response); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *Service) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	return s.repo.GetByID(ctx, id)
}

// ListProductReviews lists a product's reviews, newest first. An empty status
// lists every review.
func (s *Service) ListProductReviews(ctx context.Context, productID string, status domain.Status) ([]*domain.Review, error) {
	if status != "" && !status.Valid() {
		return nil, mapError(domain.ErrInvalidStatus)
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, mapError(domain.ErrInvalidProduct)
	}
	return s.repo.ListByProduct(ctx, productID, status)
}
