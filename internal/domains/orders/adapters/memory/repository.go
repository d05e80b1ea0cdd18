package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory order persistence adapter.
type Repository struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	byNumber map[string]string
}

func NewRepository() *Repository {
	return &Repository{
		orders:   map[string]*domain.Order{},
		byNumber: map[string]string{},
	}
}

func (r *Repository) Create(_ context.Context, order *domain.Order) error {
	if order == nil {
		return errors.New("order is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return ports.ErrDuplicateOrder
	}
	if _, exists := r.byNumber[order.OrderNumber]; exists {
		return ports.ErrDuplicateOrderNumber
	}
	r.orders[order.ID] = order.Clone()
	r.byNumber[order.OrderNumber] = order.ID
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *Repository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	r.mu.RLock()
	id, ok := r.byNumber[orderNumber]
	r.mu.RUnlock()
	if !ok {
		return nil, ports.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) ListByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*domain.Order, 0)
	for _, order := range r.orders {
		if order.UserID == userID {
			list = append(list, order.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// Update stores order only if the stored version equals expectedVersion.
func (r *Repository) Update(_ context.Context, order *domain.Order, expectedVersion int64) error {
	if order == nil {
		return errors.New("order is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[order.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if current.Version != expectedVersion {
		return ports.ErrConcurrentUpdate
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *Repository) HasDeliveredPurchase(_ context.Context, userID, productID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if order.UserID != userID || order.Status != domain.StatusDelivered {
			continue
		}
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}
