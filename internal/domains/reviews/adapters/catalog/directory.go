// Package catalog lets the reviews context look up products in the catalog.
package catalog

import (
	"context"
	"errors"

	catalogports "github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
	"github.com/Apurer/commerce-engine/internal/domains/reviews/ports"
)

var _ ports.ProductDirectory = (*Directory)(nil)

type Directory struct {
	catalog catalogports.Service
}

func NewDirectory(catalog catalogports.Service) *Directory {
	return &Directory{catalog: catalog}
}

func (d *Directory) ProductExists(ctx context.Context, productID string) (bool, error) {
	if d == nil || d.catalog == nil {
		return false, errors.New("catalog directory not configured")
	}
	_, err := d.catalog.GetProduct(ctx, productID)
	if errors.Is(err, catalogports.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
