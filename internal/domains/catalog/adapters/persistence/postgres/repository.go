package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	"github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
	platformpostgres "github.com/Apurer/commerce-engine/internal/platform/postgres"
)

var (
	_ ports.Repository      = (*Repository)(nil)
	_ ports.InventoryLedger = (*Repository)(nil)
)

// Repository persists products in PostgreSQL using GORM and serves as the
// inventory ledger through guarded single-statement updates.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Models lists the records this adapter owns, for schema migration.
func Models() []any {
	return []any{&productRecord{}, &variantRecord{}, &skuRecord{}}
}

type productRecord struct {
	ID                string              `gorm:"primaryKey;column:id;size:64"`
	Name              string              `gorm:"column:name;size:200"`
	Slug              string              `gorm:"column:slug;size:255;uniqueIndex:ux_products_slug"`
	SKU               string              `gorm:"column:sku;size:100;uniqueIndex:ux_products_sku"`
	Price             decimal.Decimal     `gorm:"column:price;type:numeric(12,2)"`
	ComparePrice      decimal.NullDecimal `gorm:"column:compare_price;type:numeric(12,2)"`
	Currency          string              `gorm:"column:currency;size:3"`
	TrackQuantity     bool                `gorm:"column:track_quantity"`
	Quantity          int64               `gorm:"column:quantity"`
	LowStockThreshold int64               `gorm:"column:low_stock_threshold"`
	AllowBackorder    bool                `gorm:"column:allow_backorder"`
	Status            string              `gorm:"column:status;type:varchar(16);index"`
	AverageRating     float64             `gorm:"column:average_rating"`
	ReviewCount       int64               `gorm:"column:review_count"`
	SalesCount        int64               `gorm:"column:sales_count"`
	ViewCount         int64               `gorm:"column:view_count"`
	Variants          []variantRecord     `gorm:"foreignKey:ProductID"`
	CreatedAt         time.Time           `gorm:"column:created_at;index"`
	UpdatedAt         time.Time           `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

type variantRecord struct {
	ID                string              `gorm:"primaryKey;column:id;size:64"`
	ProductID         string              `gorm:"column:product_id;size:64;index"`
	Position          int                 `gorm:"column:position"`
	Name              string              `gorm:"column:name;size:200"`
	SKU               string              `gorm:"column:sku;size:100;uniqueIndex:ux_product_variants_sku"`
	Price             decimal.Decimal     `gorm:"column:price;type:numeric(12,2)"`
	ComparePrice      decimal.NullDecimal `gorm:"column:compare_price;type:numeric(12,2)"`
	TrackQuantity     bool                `gorm:"column:track_quantity"`
	Quantity          int64               `gorm:"column:quantity"`
	LowStockThreshold int64               `gorm:"column:low_stock_threshold"`
	AllowBackorder    bool                `gorm:"column:allow_backorder"`
	Status            string              `gorm:"column:status;type:varchar(16)"`
}

func (variantRecord) TableName() string { return "product_variants" }

// skuRecord claims a SKU across products and variants, which share one namespace.
type skuRecord struct {
	SKU       string `gorm:"primaryKey;column:sku;size:100"`
	ProductID string `gorm:"column:product_id;size:64;index"`
}

func (skuRecord) TableName() string { return "catalog_skus" }

// stockRecord is the projection read by Level.
type stockRecord struct {
	TrackQuantity     bool
	Quantity          int64
	LowStockThreshold int64
	AllowBackorder    bool
}

// Create inserts the product together with its variants and claims every SKU
// in one transaction.
func (r *Repository) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errors.New("product is nil")
	}
	record := toRecord(product)
	skus := []skuRecord{{SKU: product.SKU, ProductID: product.ID}}
	for _, v := range product.Variants {
		skus = append(skus, skuRecord{SKU: v.SKU, ProductID: product.ID})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return tx.Create(&skus).Error
	})
	if err != nil {
		if constraint, ok := platformpostgres.UniqueViolation(err); ok {
			if strings.Contains(constraint, "slug") {
				return nil, ports.ErrDuplicateSlug
			}
			return nil, ports.ErrDuplicateSKU
		}
		return nil, err
	}
	return r.GetByID(ctx, record.ID)
}

// GetByID fetches a product with its variants.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.first(ctx, "id = ?", id)
}

// GetBySlug fetches a product by its URL slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	if err := r.ensureDB(); err != nil {
		return false, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&productRecord{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Product, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	result := r.db.WithContext(ctx).Model(&productRecord{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"status": string(status), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ports.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	return r.increment(ctx, id, "view_count", 1)
}

func (r *Repository) IncrementSales(ctx context.Context, id string, quantity int64) error {
	return r.increment(ctx, id, "sales_count", quantity)
}

// SetRating overwrites the rating aggregates; the last recomputation wins.
func (r *Repository) SetRating(ctx context.Context, id string, average float64, count int64) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&productRecord{}).Where("id = ?", id).
		UpdateColumns(map[string]any{
			"average_rating": average,
			"review_count":   count,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) ListIDs(ctx context.Context) ([]string, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(&productRecord{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Reserve issues a single guarded UPDATE. Untracked rows match and keep their
// quantity; tracked rows without backorder only match while enough stock remains.
func (r *Repository) Reserve(ctx context.Context, key domain.StockKey, quantity int64) error {
	if quantity <= 0 {
		return ports.NewInventoryError("reserve", key, ports.InventoryErrorInvalidQuantity)
	}
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.stockScope(ctx, key).
		Where("(track_quantity = ? OR allow_backorder = ? OR quantity >= ?)", false, true, quantity).
		UpdateColumn("quantity", gorm.Expr("CASE WHEN track_quantity THEN quantity - ? ELSE quantity END", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	exists, err := r.stockExists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return ports.NewInventoryError("reserve", key, ports.InventoryErrorStockNotFound)
	}
	return ports.NewInventoryError("reserve", key, ports.InventoryErrorInsufficientStock)
}

func (r *Repository) Release(ctx context.Context, key domain.StockKey, quantity int64) error {
	if quantity <= 0 {
		return ports.NewInventoryError("release", key, ports.InventoryErrorInvalidQuantity)
	}
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.stockScope(ctx, key).
		UpdateColumn("quantity", gorm.Expr("CASE WHEN track_quantity THEN quantity + ? ELSE quantity END", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.NewInventoryError("release", key, ports.InventoryErrorStockNotFound)
	}
	return nil
}

func (r *Repository) Level(ctx context.Context, key domain.StockKey) (domain.Inventory, error) {
	if err := r.ensureDB(); err != nil {
		return domain.Inventory{}, err
	}
	var rows []stockRecord
	if err := r.stockScope(ctx, key).
		Select("track_quantity", "quantity", "low_stock_threshold", "allow_backorder").
		Limit(1).Scan(&rows).Error; err != nil {
		return domain.Inventory{}, err
	}
	if len(rows) == 0 {
		return domain.Inventory{}, ports.NewInventoryError("level", key, ports.InventoryErrorStockNotFound)
	}
	row := rows[0]
	return domain.Inventory{
		TrackQuantity:     row.TrackQuantity,
		Quantity:          row.Quantity,
		LowStockThreshold: row.LowStockThreshold,
		AllowBackorder:    row.AllowBackorder,
	}, nil
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*domain.Product, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record productRecord
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where(query, arg).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) increment(ctx context.Context, id, column string, delta int64) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&productRecord{}).Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) stockScope(ctx context.Context, key domain.StockKey) *gorm.DB {
	if key.VariantID == "" {
		return r.db.WithContext(ctx).Model(&productRecord{}).Where("id = ?", key.ProductID)
	}
	return r.db.WithContext(ctx).Model(&variantRecord{}).
		Where("id = ? AND product_id = ?", key.VariantID, key.ProductID)
}

func (r *Repository) stockExists(ctx context.Context, key domain.StockKey) (bool, error) {
	var count int64
	if err := r.stockScope(ctx, key).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres catalog repository not configured")
	}
	return nil
}

func toRecord(p *domain.Product) productRecord {
	rec := productRecord{
		ID:                p.ID,
		Name:              p.Name,
		Slug:              p.Slug,
		SKU:               p.SKU,
		Price:             p.Price,
		ComparePrice:      toNullDecimal(p.ComparePrice),
		Currency:          p.Currency,
		TrackQuantity:     p.Inventory.TrackQuantity,
		Quantity:          p.Inventory.Quantity,
		LowStockThreshold: p.Inventory.LowStockThreshold,
		AllowBackorder:    p.Inventory.AllowBackorder,
		Status:            string(p.Status),
		AverageRating:     p.AverageRating,
		ReviewCount:       p.ReviewCount,
		SalesCount:        p.SalesCount,
		ViewCount:         p.ViewCount,
	}
	for i, v := range p.Variants {
		rec.Variants = append(rec.Variants, variantRecord{
			ID:                v.ID,
			ProductID:         p.ID,
			Position:          i,
			Name:              v.Name,
			SKU:               v.SKU,
			Price:             v.Price,
			ComparePrice:      toNullDecimal(v.ComparePrice),
			TrackQuantity:     v.Inventory.TrackQuantity,
			Quantity:          v.Inventory.Quantity,
			LowStockThreshold: v.Inventory.LowStockThreshold,
			AllowBackorder:    v.Inventory.AllowBackorder,
			Status:            string(v.Status),
		})
	}
	return rec
}

func (r productRecord) toDomain() *domain.Product {
	p := &domain.Product{
		ID:           r.ID,
		Name:         r.Name,
		Slug:         r.Slug,
		SKU:          r.SKU,
		Price:        r.Price,
		ComparePrice: fromNullDecimal(r.ComparePrice),
		Currency:     r.Currency,
		Inventory: domain.Inventory{
			TrackQuantity:     r.TrackQuantity,
			Quantity:          r.Quantity,
			LowStockThreshold: r.LowStockThreshold,
			AllowBackorder:    r.AllowBackorder,
		},
		Status:        domain.Status(r.Status),
		AverageRating: r.AverageRating,
		ReviewCount:   r.ReviewCount,
		SalesCount:    r.SalesCount,
		ViewCount:     r.ViewCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	for _, v := range r.Variants {
		p.Variants = append(p.Variants, domain.Variant{
			ID:           v.ID,
			Name:         v.Name,
			SKU:          v.SKU,
			Price:        v.Price,
			ComparePrice: fromNullDecimal(v.ComparePrice),
			Inventory: domain.Inventory{
				TrackQuantity:     v.TrackQuantity,
				Quantity:          v.Quantity,
				LowStockThreshold: v.LowStockThreshold,
				AllowBackorder:    v.AllowBackorder,
			},
			Status: domain.VariantStatus(v.Status),
		})
	}
	return p
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
