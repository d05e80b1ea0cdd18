//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	"github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
	"github.com/Apurer/commerce-engine/internal/platform/migrations"
	platformpostgres "github.com/Apurer/commerce-engine/internal/platform/postgres"
	"github.com/Apurer/commerce-engine/internal/shared/money"
)

func setupCatalogPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("catalog_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := platformpostgres.Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db, Models()))

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}
	return db, cleanup
}

func newProduct(id string, inv domain.Inventory) *domain.Product {
	return &domain.Product{
		ID:        id,
		Name:      "Product " + id,
		Slug:      "product-" + id,
		SKU:       "SKU-" + id,
		Price:     money.MustParse("19.99"),
		Currency:  "USD",
		Inventory: inv,
		Status:    domain.StatusActive,
		Variants: []domain.Variant{{
			ID:        id + "-v1",
			Name:      "Blue",
			SKU:       "SKU-" + id + "-B",
			Price:     money.MustParse("21.00"),
			Inventory: domain.DefaultInventory(3),
			Status:    domain.VariantActive,
		}},
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, cleanup := setupCatalogPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newProduct("p1", domain.DefaultInventory(5)))
	require.NoError(t, err)
	assert.Equal(t, "product-p1", created.Slug)
	require.Len(t, created.Variants, 1)
	assert.True(t, created.Price.Equal(money.MustParse("19.99")))

	bySlug, err := repo.GetBySlug(ctx, "product-p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", bySlug.ID)

	dupSlug := newProduct("p2", domain.DefaultInventory(1))
	dupSlug.Slug = "product-p1"
	_, err = repo.Create(ctx, dupSlug)
	require.ErrorIs(t, err, ports.ErrDuplicateSlug)

	dupSKU := newProduct("p3", domain.DefaultInventory(1))
	dupSKU.SKU = "SKU-p1"
	_, err = repo.Create(ctx, dupSKU)
	require.ErrorIs(t, err, ports.ErrDuplicateSKU)

	variantClash := newProduct("p4", domain.DefaultInventory(1))
	variantClash.Variants[0].SKU = "SKU-p1"
	_, err = repo.Create(ctx, variantClash)
	require.ErrorIs(t, err, ports.ErrDuplicateSKU)

	productClash := newProduct("p5", domain.DefaultInventory(1))
	productClash.SKU = "SKU-p1-B"
	_, err = repo.Create(ctx, productClash)
	require.ErrorIs(t, err, ports.ErrDuplicateSKU)

	_, err = repo.GetByID(ctx, "p4")
	require.ErrorIs(t, err, ports.ErrNotFound)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_ConcurrentReserveNeverOversells(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, cleanup := setupCatalogPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	_, err := repo.Create(ctx, newProduct("p1", domain.DefaultInventory(5)))
	require.NoError(t, err)
	key := domain.StockKey{ProductID: "p1"}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Reserve(ctx, key, 3)
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientStock)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	level, err := repo.Level(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), level.Quantity)
}

func TestRepository_LedgerPolicies(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, cleanup := setupCatalogPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	_, err := repo.Create(ctx, newProduct("back", domain.Inventory{TrackQuantity: true, Quantity: 1, AllowBackorder: true}))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newProduct("free", domain.Inventory{TrackQuantity: false}))
	require.NoError(t, err)

	require.NoError(t, repo.Reserve(ctx, domain.StockKey{ProductID: "back"}, 4))
	level, err := repo.Level(ctx, domain.StockKey{ProductID: "back"})
	require.NoError(t, err)
	assert.Equal(t, int64(-3), level.Quantity)

	require.NoError(t, repo.Reserve(ctx, domain.StockKey{ProductID: "free"}, 10))
	level, err = repo.Level(ctx, domain.StockKey{ProductID: "free"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), level.Quantity)

	variant := domain.StockKey{ProductID: "free", VariantID: "free-v1"}
	require.ErrorIs(t, repo.Reserve(ctx, variant, 4), domain.ErrInsufficientStock)
	require.NoError(t, repo.Reserve(ctx, variant, 3))
	require.NoError(t, repo.Release(ctx, variant, 3))

	require.ErrorIs(t, repo.Reserve(ctx, domain.StockKey{ProductID: "ghost"}, 1), ports.ErrNotFound)
	require.ErrorIs(t, repo.Release(ctx, domain.StockKey{ProductID: "ghost"}, 1), ports.ErrNotFound)
	require.ErrorIs(t, repo.Release(ctx, variant, 0), domain.ErrInvalidQuantity)
}

func TestRepository_Counters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, cleanup := setupCatalogPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	_, err := repo.Create(ctx, newProduct("p1", domain.DefaultInventory(5)))
	require.NoError(t, err)

	require.NoError(t, repo.IncrementSales(ctx, "p1", 2))
	require.NoError(t, repo.IncrementViews(ctx, "p1"))
	require.NoError(t, repo.SetRating(ctx, "p1", 4.3, 7))
	_, err = repo.UpdateStatus(ctx, "p1", domain.StatusArchived)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.SalesCount)
	assert.Equal(t, int64(1), got.ViewCount)
	assert.Equal(t, 4.3, got.AverageRating)
	assert.Equal(t, int64(7), got.ReviewCount)
	assert.Equal(t, domain.StatusArchived, got.Status)

	ids, err := repo.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}
