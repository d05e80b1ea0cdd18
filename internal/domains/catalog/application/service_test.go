package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/adapters/memory"
	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	"github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
	"github.com/Apurer/commerce-engine/internal/shared/money"
)

func newTestService() *Service {
	repo := memory.NewRepository()
	return NewService(repo, repo)
}

func TestCreateProduct_DefaultsAndUniqueSlug(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	first, err := svc.CreateProduct(ctx, ports.CreateProductInput{Name: "Trail Shoe", SKU: "TS-1", Price: money.MustParse("89.99")})
	require.NoError(t, err)
	assert.Equal(t, "trail-shoe", first.Slug)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, domain.StatusDraft, first.Status)
	assert.True(t, first.Inventory.TrackQuantity)
	assert.Equal(t, domain.DefaultLowStockThreshold, first.Inventory.LowStockThreshold)

	second, err := svc.CreateProduct(ctx, ports.CreateProductInput{Name: "Trail  Shoe!", SKU: "TS-2", Price: money.MustParse("79.99")})
	require.NoError(t, err)
	assert.Equal(t, "trail-shoe-1", second.Slug)

	found, err := svc.GetProductBySlug(ctx, "trail-shoe-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
}

func TestCreateProduct_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CreateProduct(ctx, ports.CreateProductInput{Name: " ", SKU: "X", Price: money.MustParse("1")})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.CreateProduct(ctx, ports.CreateProductInput{Name: "Hat", SKU: "H", Price: money.MustParse("1"), Currency: "JPY"})
	require.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, err = svc.CreateProduct(ctx, ports.CreateProductInput{Name: "Hat", SKU: "H", Price: money.Zero.Sub(money.MustParse("1"))})
	require.ErrorIs(t, err, domain.ErrInvalidPrice)
	assert.Equal(t, errkind.InvalidInput, errkind.Of(err))
}

func TestCreateProduct_DuplicateSKU(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CreateProduct(ctx, ports.CreateProductInput{Name: "Cap", SKU: "CAP", Price: money.MustParse("5")})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, ports.CreateProductInput{Name: "Cap Two", SKU: "CAP", Price: money.MustParse("5")})
	require.ErrorIs(t, err, ports.ErrDuplicateSKU)
}

func TestRestockAndStockStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	inv := domain.DefaultInventory(2)
	product, err := svc.CreateProduct(ctx, ports.CreateProductInput{Name: "Mug", SKU: "MUG", Price: money.MustParse("12"), Inventory: &inv})
	require.NoError(t, err)
	key := domain.StockKey{ProductID: product.ID}

	status, err := svc.StockStatus(ctx, key)
	require.NoError(t, err)
	assert.True(t, status.LowStock)
	assert.True(t, status.InStock)

	require.NoError(t, svc.ReserveStock(ctx, key, 2))
	status, err = svc.StockStatus(ctx, key)
	require.NoError(t, err)
	assert.False(t, status.InStock)

	status, err = svc.Restock(ctx, key, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), status.Inventory.Quantity)
	assert.False(t, status.LowStock)

	_, err = svc.Restock(ctx, key, 0)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestChangeStatusAndDiscount(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	compare := money.MustParse("100")
	product, err := svc.CreateProduct(ctx, ports.CreateProductInput{Name: "Lamp", SKU: "LAMP", Price: money.MustParse("75"), ComparePrice: &compare})
	require.NoError(t, err)
	assert.Equal(t, int64(25), product.DiscountPercent())

	updated, err := svc.ChangeStatus(ctx, product.ID, domain.StatusActive)
	require.NoError(t, err)
	assert.True(t, updated.Sellable())

	_, err = svc.ChangeStatus(ctx, product.ID, domain.Status("GONE"))
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.ChangeStatus(ctx, "missing", domain.StatusActive)
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestUpdateRatingAndSales(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	product, err := svc.CreateProduct(ctx, ports.CreateProductInput{Name: "Pen", SKU: "PEN", Price: money.MustParse("2")})
	require.NoError(t, err)

	require.ErrorIs(t, svc.UpdateRating(ctx, product.ID, 5.5, 1), ErrInvalidInput)
	require.NoError(t, svc.UpdateRating(ctx, product.ID, 4.0, 3))
	require.ErrorIs(t, svc.RecordSale(ctx, product.ID, 0), domain.ErrInvalidQuantity)
	require.NoError(t, svc.RecordSale(ctx, product.ID, 2))
	require.NoError(t, svc.RecordView(ctx, product.ID))

	got, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.AverageRating)
	assert.Equal(t, int64(3), got.ReviewCount)
	assert.Equal(t, int64(2), got.SalesCount)
	assert.Equal(t, int64(1), got.ViewCount)

	ids, err := svc.ListProductIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{product.ID}, ids)
}
