package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Apurer/commerce-engine/internal/domains/reviews/domain"
	"github.com/Apurer/commerce-engine/internal/domains/reviews/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory review store. A single mutex serialises writes,
// which makes every conditional update atomic.
type Repository struct {
	mu      sync.RWMutex
	reviews map[string]*domain.Review
	authors map[string]string
	now     func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		reviews: map[string]*domain.Review{},
		authors: map[string]string{},
		now:     time.Now,
	}
}

func authorKey(productID, userID string) string {
	return productID + "\x00" + userID
}

func (r *Repository) Create(_ context.Context, review *domain.Review) error {
	if review == nil {
		return errors.New("review is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := authorKey(review.ProductID, review.UserID)
	if _, exists := r.authors[key]; exists {
		return ports.ErrDuplicateReview
	}
	r.reviews[review.ID] = review.Clone()
	r.authors[key] = review.ID
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	review, ok := r.reviews[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return review.Clone(), nil
}

func (r *Repository) ListByProduct(_ context.Context, productID string, status domain.Status) ([]*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Review
	for _, review := range r.reviews {
		if review.ProductID != productID {
			continue
		}
		if status != "" && review.Status != status {
			continue
		}
		out = append(out, review.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Repository) SetStatus(_ context.Context, id string, expected, next domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok {
		return ports.ErrNotFound
	}
	if review.Status != expected {
		return ports.ErrConcurrentUpdate
	}
	review.Status = next
	review.UpdatedAt = r.now().UTC()
	return nil
}

func (r *Repository) SetResponse(_ context.Context, id string, response domain.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok {
		return ports.ErrNotFound
	}
	review.Response = &response
	review.UpdatedAt = r.now().UTC()
	return nil
}

func (r *Repository) AddHelpful(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	return review.MarkHelpful(userID), nil
}

func (r *Repository) RemoveHelpful(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	return review.UnmarkHelpful(userID), nil
}

func (r *Repository) Delete(_ context.Context, id string) (*domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	delete(r.reviews, id)
	delete(r.authors, authorKey(review.ProductID, review.UserID))
	return review, nil
}

func (r *Repository) ApprovedRatings(_ context.Context, productID string) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ratings := []int{}
	for _, review := range r.reviews {
		if review.ProductID == productID && review.Status == domain.StatusApproved {
			ratings = append(ratings, review.Rating)
		}
	}
	return ratings, nil
}
