// Package catalog adapts the catalog bounded context to the ports the orders
// context depends on.
package catalog

import (
	"context"
	"errors"
	"fmt"

	catalogdomain "github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	catalogports "github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
)

var (
	_ ports.ProductCatalog = (*Bridge)(nil)
	_ ports.Inventory      = (*Bridge)(nil)
	_ ports.SalesRecorder  = (*Bridge)(nil)
)

// Bridge exposes catalog use cases through the orders ports.
type Bridge struct {
	catalog catalogports.Service
}

func NewBridge(catalog catalogports.Service) *Bridge {
	return &Bridge{catalog: catalog}
}

// Snapshot resolves the sellable product or variant and captures its current price.
func (b *Bridge) Snapshot(ctx context.Context, productID, variantID string) (ports.ProductSnapshot, error) {
	if b == nil || b.catalog == nil {
		return ports.ProductSnapshot{}, errors.New("catalog bridge not configured")
	}
	product, err := b.catalog.GetProduct(ctx, productID)
	if err != nil {
		return ports.ProductSnapshot{}, err
	}
	if !product.Sellable() {
		return ports.ProductSnapshot{}, fmt.Errorf("%w: %s is %s", ports.ErrProductUnavailable, product.SKU, product.Status)
	}
	snapshot := ports.ProductSnapshot{
		Name:      product.Name,
		SKU:       product.SKU,
		UnitPrice: product.Price,
		Currency:  product.Currency,
	}
	if variantID == "" {
		return snapshot, nil
	}
	variant, err := product.FindVariant(variantID)
	if err != nil {
		return ports.ProductSnapshot{}, fmt.Errorf("%s: %w", variantID, catalogports.ErrNotFound)
	}
	if !variant.Sellable() {
		return ports.ProductSnapshot{}, fmt.Errorf("%w: %s is %s", ports.ErrProductUnavailable, variant.SKU, variant.Status)
	}
	snapshot.Name = product.Name + " - " + variant.Name
	snapshot.SKU = variant.SKU
	snapshot.UnitPrice = variant.Price
	return snapshot, nil
}

func (b *Bridge) Reserve(ctx context.Context, productID, variantID string, quantity int64) error {
	return b.catalog.ReserveStock(ctx, catalogdomain.StockKey{ProductID: productID, VariantID: variantID}, quantity)
}

func (b *Bridge) Release(ctx context.Context, productID, variantID string, quantity int64) error {
	return b.catalog.ReleaseStock(ctx, catalogdomain.StockKey{ProductID: productID, VariantID: variantID}, quantity)
}

func (b *Bridge) RecordSale(ctx context.Context, productID string, quantity int64) error {
	return b.catalog.RecordSale(ctx, productID, quantity)
}
