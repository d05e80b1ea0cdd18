package ports

import (
	"context"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

var (
	ErrNotFound      = errkind.New(errkind.NotFound, "product not found")
	ErrDuplicateSKU  = errkind.New(errkind.Conflict, "sku already exists")
	ErrDuplicateSlug = errkind.New(errkind.Conflict, "slug already exists")
)

// Repository persists product aggregates. Counters are changed through targeted
// atomic updates so concurrent writers never overwrite each other.
type Repository interface {
	Create(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Product, error)
	IncrementViews(ctx context.Context, id string) error
	IncrementSales(ctx context.Context, id string, quantity int64) error
	SetRating(ctx context.Context, id string, average float64, count int64) error
	ListIDs(ctx context.Context) ([]string, error)
}

// InventoryLedger is the authoritative stock store. Reserve is an atomic
// conditional decrement; it never reads then writes.
type InventoryLedger interface {
	Reserve(ctx context.Context, key domain.StockKey, quantity int64) error
	Release(ctx context.Context, key domain.StockKey, quantity int64) error
	Level(ctx context.Context, key domain.StockKey) (domain.Inventory, error)
}
