package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	"github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
)

var (
	_ ports.Repository      = (*Repository)(nil)
	_ ports.InventoryLedger = (*Repository)(nil)
)

// stockCell holds one stock key. The policy is fixed at creation; quantity is
// only ever changed with atomic operations.
type stockCell struct {
	policy   domain.Inventory
	quantity atomic.Int64
}

type entry struct {
	product *domain.Product
	stock   map[string]*stockCell
	views   atomic.Int64
	sales   atomic.Int64
}

// Repository is an in-memory catalog store that also serves as the inventory ledger.
type Repository struct {
	mu       sync.RWMutex
	products map[string]*entry
	slugs    map[string]string
	skus     map[string]string
	now      func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		products: map[string]*entry{},
		slugs:    map[string]string{},
		skus:     map[string]string{},
		now:      time.Now,
	}
}

func (r *Repository) Create(_ context.Context, product *domain.Product) (*domain.Product, error) {
	if product == nil {
		return nil, errors.New("product is nil")
	}
	clone := product.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.slugs[clone.Slug]; exists {
		return nil, ports.ErrDuplicateSlug
	}
	skus := []string{clone.SKU}
	for _, v := range clone.Variants {
		skus = append(skus, v.SKU)
	}
	seen := map[string]struct{}{}
	for _, sku := range skus {
		if _, taken := r.skus[sku]; taken {
			return nil, ports.ErrDuplicateSKU
		}
		if _, dup := seen[sku]; dup {
			return nil, ports.ErrDuplicateSKU
		}
		seen[sku] = struct{}{}
	}

	now := r.now().UTC()
	clone.CreatedAt, clone.UpdatedAt = now, now
	e := &entry{product: clone, stock: map[string]*stockCell{"": newStockCell(clone.Inventory)}}
	for _, v := range clone.Variants {
		e.stock[v.ID] = newStockCell(v.Inventory)
	}
	e.views.Store(clone.ViewCount)
	e.sales.Store(clone.SalesCount)
	r.products[clone.ID] = e
	r.slugs[clone.Slug] = clone.ID
	for _, sku := range skus {
		r.skus[sku] = clone.ID
	}
	return e.snapshot(), nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.products[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return e.snapshot(), nil
}

func (r *Repository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	r.mu.RLock()
	id, ok := r.slugs[slug]
	r.mu.RUnlock()
	if !ok {
		return nil, ports.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) SlugExists(_ context.Context, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.slugs[slug]
	return ok, nil
}

func (r *Repository) UpdateStatus(_ context.Context, id string, status domain.Status) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.products[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if err := e.product.ChangeStatus(status); err != nil {
		return nil, err
	}
	e.product.UpdatedAt = r.now().UTC()
	return e.snapshot(), nil
}

func (r *Repository) IncrementViews(_ context.Context, id string) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.views.Add(1)
	return nil
}

func (r *Repository) IncrementSales(_ context.Context, id string, quantity int64) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.sales.Add(quantity)
	return nil
}

func (r *Repository) SetRating(_ context.Context, id string, average float64, count int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.products[id]
	if !ok {
		return ports.ErrNotFound
	}
	e.product.AverageRating = average
	e.product.ReviewCount = count
	e.product.UpdatedAt = r.now().UTC()
	return nil
}

func (r *Repository) ListIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.products))
	for id := range r.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Reserve decrements stock with a compare-and-swap loop so concurrent callers
// can never overdraw a key that disallows backorders.
func (r *Repository) Reserve(_ context.Context, key domain.StockKey, quantity int64) error {
	if quantity <= 0 {
		return ports.NewInventoryError("reserve", key, ports.InventoryErrorInvalidQuantity)
	}
	cell, err := r.cell("reserve", key)
	if err != nil {
		return err
	}
	if !cell.policy.TrackQuantity {
		return nil
	}
	for {
		current := cell.quantity.Load()
		if !cell.policy.AllowBackorder && quantity > current {
			return ports.NewInventoryError("reserve", key, ports.InventoryErrorInsufficientStock)
		}
		if cell.quantity.CompareAndSwap(current, current-quantity) {
			return nil
		}
	}
}

func (r *Repository) Release(_ context.Context, key domain.StockKey, quantity int64) error {
	if quantity <= 0 {
		return ports.NewInventoryError("release", key, ports.InventoryErrorInvalidQuantity)
	}
	cell, err := r.cell("release", key)
	if err != nil {
		return err
	}
	if !cell.policy.TrackQuantity {
		return nil
	}
	cell.quantity.Add(quantity)
	return nil
}

func (r *Repository) Level(_ context.Context, key domain.StockKey) (domain.Inventory, error) {
	cell, err := r.cell("level", key)
	if err != nil {
		return domain.Inventory{}, err
	}
	return cell.level(), nil
}

func (r *Repository) entry(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.products[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return e, nil
}

func (r *Repository) cell(op string, key domain.StockKey) (*stockCell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.products[key.ProductID]
	if !ok {
		return nil, ports.NewInventoryError(op, key, ports.InventoryErrorStockNotFound)
	}
	cell, ok := e.stock[key.VariantID]
	if !ok {
		return nil, ports.NewInventoryError(op, key, ports.InventoryErrorStockNotFound)
	}
	return cell, nil
}

func newStockCell(inv domain.Inventory) *stockCell {
	cell := &stockCell{policy: inv}
	cell.quantity.Store(inv.Quantity)
	return cell
}

func (c *stockCell) level() domain.Inventory {
	inv := c.policy
	inv.Quantity = c.quantity.Load()
	return inv
}

// snapshot must be called with the repository lock held.
func (e *entry) snapshot() *domain.Product {
	p := e.product.Clone()
	p.Inventory = e.stock[""].level()
	for i := range p.Variants {
		if cell, ok := e.stock[p.Variants[i].ID]; ok {
			p.Variants[i].Inventory = cell.level()
		}
	}
	p.ViewCount = e.views.Load()
	p.SalesCount = e.sales.Load()
	return p
}
