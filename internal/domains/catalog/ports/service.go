package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
)

// VariantInput describes a variant supplied at product creation.
type VariantInput struct {
	Name         string
	SKU          string
	Price        decimal.Decimal
	ComparePrice *decimal.Decimal
	Inventory    *domain.Inventory
	Status       domain.VariantStatus
}

// CreateProductInput carries the fields an admin supplies for a new product.
type CreateProductInput struct {
	Name         string
	SKU          string
	Price        decimal.Decimal
	ComparePrice *decimal.Decimal
	Currency     string
	Inventory    *domain.Inventory
	Variants     []VariantInput
	Status       domain.Status
}

// StockStatus is a point-in-time view of one stock key.
type StockStatus struct {
	Key       domain.StockKey
	Inventory domain.Inventory
	InStock   bool
	LowStock  bool
}

// Service exposes catalog and inventory use cases.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ChangeStatus(ctx context.Context, id string, status domain.Status) (*domain.Product, error)
	ReserveStock(ctx context.Context, key domain.StockKey, quantity int64) error
	ReleaseStock(ctx context.Context, key domain.StockKey, quantity int64) error
	Restock(ctx context.Context, key domain.StockKey, quantity int64) (*StockStatus, error)
	StockStatus(ctx context.Context, key domain.StockKey) (*StockStatus, error)
	RecordView(ctx context.Context, id string) error
	RecordSale(ctx context.Context, id string, quantity int64) error
	UpdateRating(ctx context.Context, id string, average float64, count int64) error
	ListProductIDs(ctx context.Context) ([]string, error)
}
