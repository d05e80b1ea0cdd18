package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	platformpostgres "github.com/Apurer/commerce-engine/internal/platform/postgres"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists orders in PostgreSQL using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Models lists the records this adapter owns, for schema migration.
func Models() []any {
	return []any{&orderRecord{}, &orderItemRecord{}, &idempotencyRecord{}}
}

// orderRecord maps the order aggregate to a relational table. Addresses are
// stored as JSON documents since they are never queried by field.
type orderRecord struct {
	ID                string            `gorm:"primaryKey;column:id;size:64"`
	OrderNumber       string            `gorm:"column:order_number;size:32;uniqueIndex:ux_orders_order_number"`
	UserID            string            `gorm:"column:user_id;size:64;index:idx_orders_user_created"`
	Items             []orderItemRecord `gorm:"foreignKey:OrderID"`
	ShippingAddress   domain.Address    `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress    domain.Address    `gorm:"column:billing_address;type:jsonb;serializer:json"`
	PaymentMethod     string            `gorm:"column:payment_method;type:varchar(32)"`
	PaymentStatus     string            `gorm:"column:payment_status;type:varchar(16)"`
	TransactionID     string            `gorm:"column:transaction_id;size:128"`
	PaidAt            *time.Time        `gorm:"column:paid_at"`
	PaymentRefundedAt *time.Time        `gorm:"column:payment_refunded_at"`
	RefundAmount      decimal.Decimal   `gorm:"column:refund_amount;type:numeric(12,2)"`
	ShippingMethod    string            `gorm:"column:shipping_method;size:64"`
	ShippingCarrier   string            `gorm:"column:shipping_carrier;size:64"`
	ShippingCost      decimal.Decimal   `gorm:"column:shipping_cost;type:numeric(12,2)"`
	ShippingDays      int               `gorm:"column:shipping_estimated_days"`
	Status            string            `gorm:"column:status;type:varchar(16);index"`
	Subtotal          decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2)"`
	Tax               decimal.Decimal   `gorm:"column:tax;type:numeric(12,2)"`
	Discount          decimal.Decimal   `gorm:"column:discount;type:numeric(12,2)"`
	Total             decimal.Decimal   `gorm:"column:total;type:numeric(12,2)"`
	Currency          string            `gorm:"column:currency;size:3"`
	Notes             string            `gorm:"column:notes;size:500"`
	TrackingNumber    string            `gorm:"column:tracking_number;size:100"`
	DeliveredAt       *time.Time        `gorm:"column:delivered_at"`
	CancelledAt       *time.Time        `gorm:"column:cancelled_at"`
	RefundedAt        *time.Time        `gorm:"column:refunded_at"`
	Version           int64             `gorm:"column:version"`
	CreatedAt         time.Time         `gorm:"column:created_at;index:idx_orders_user_created"`
	UpdatedAt         time.Time         `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

type orderItemRecord struct {
	ID        uint            `gorm:"primaryKey;column:id"`
	OrderID   string          `gorm:"column:order_id;size:64;index"`
	Position  int             `gorm:"column:position"`
	ProductID string          `gorm:"column:product_id;size:64;index"`
	VariantID string          `gorm:"column:variant_id;size:64"`
	Name      string          `gorm:"column:name;size:255"`
	SKU       string          `gorm:"column:sku;size:100"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2)"`
	Quantity  int64           `gorm:"column:quantity"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2)"`
}

func (orderItemRecord) TableName() string { return "order_items" }

// Create inserts the order and its lines in one transaction.
func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if order == nil {
		return errors.New("order is nil")
	}
	record := toRecord(order)
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		if constraint, ok := platformpostgres.UniqueViolation(err); ok {
			if constraint == "orders_pkey" {
				return ports.ErrDuplicateOrder
			}
			return ports.ErrDuplicateOrderNumber
		}
		return err
	}
	return nil
}

// GetByID fetches an order with its lines.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByNumber fetches an order by its human-readable number.
func (r *Repository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return r.first(ctx, "order_number = ?", orderNumber)
}

// ListByUser returns the user's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []orderRecord
	if err := r.withItems(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(records))
	for i := range records {
		orders = append(orders, records[i].toDomain())
	}
	return orders, nil
}

// Update writes the mutable order columns only while the stored version still
// equals expectedVersion.
func (r *Repository) Update(ctx context.Context, order *domain.Order, expectedVersion int64) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if order == nil {
		return errors.New("order is nil")
	}
	rec := toRecord(order)
	result := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("id = ? AND version = ?", order.ID, expectedVersion).
		UpdateColumns(map[string]any{
			"status":              rec.Status,
			"payment_status":      rec.PaymentStatus,
			"transaction_id":      rec.TransactionID,
			"paid_at":             rec.PaidAt,
			"payment_refunded_at": rec.PaymentRefundedAt,
			"refund_amount":       rec.RefundAmount,
			"tracking_number":     rec.TrackingNumber,
			"delivered_at":        rec.DeliveredAt,
			"cancelled_at":        rec.CancelledAt,
			"refunded_at":         rec.RefundedAt,
			"version":             rec.Version,
			"updated_at":          rec.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&orderRecord{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ports.ErrNotFound
	}
	return ports.ErrConcurrentUpdate
}

// HasDeliveredPurchase reports whether any delivered order of the user contains the product.
func (r *Repository) HasDeliveredPurchase(ctx context.Context, userID, productID string) (bool, error) {
	if err := r.ensureDB(); err != nil {
		return false, err
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&orderRecord{}).
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.product_id = ?",
			userID, string(domain.StatusDelivered), productID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := r.withItems(ctx).Where(query, arg).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

func toRecord(o *domain.Order) orderRecord {
	rec := orderRecord{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		UserID:            o.UserID,
		ShippingAddress:   o.ShippingAddress,
		BillingAddress:    o.BillingAddress,
		PaymentMethod:     string(o.Payment.Method),
		PaymentStatus:     string(o.Payment.Status),
		TransactionID:     o.Payment.TransactionID,
		PaidAt:            o.Payment.PaidAt,
		PaymentRefundedAt: o.Payment.RefundedAt,
		RefundAmount:      o.Payment.RefundAmount,
		ShippingMethod:    o.Shipping.Method,
		ShippingCarrier:   o.Shipping.Carrier,
		ShippingCost:      o.ShippingCost,
		ShippingDays:      o.Shipping.EstimatedDays,
		Status:            string(o.Status),
		Subtotal:          o.Subtotal,
		Tax:               o.Tax,
		Discount:          o.Discount,
		Total:             o.Total,
		Currency:          o.Currency,
		Notes:             o.Notes,
		TrackingNumber:    o.TrackingNumber,
		DeliveredAt:       o.DeliveredAt,
		CancelledAt:       o.CancelledAt,
		RefundedAt:        o.RefundedAt,
		Version:           o.Version,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for i, item := range o.Items {
		rec.Items = append(rec.Items, orderItemRecord{
			OrderID:   o.ID,
			Position:  i,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
		})
	}
	return rec
}

func (r orderRecord) toDomain() *domain.Order {
	o := &domain.Order{
		ID:              r.ID,
		OrderNumber:     r.OrderNumber,
		UserID:          r.UserID,
		ShippingAddress: r.ShippingAddress,
		BillingAddress:  r.BillingAddress,
		Payment: domain.Payment{
			Method:        domain.PaymentMethod(r.PaymentMethod),
			Status:        domain.PaymentStatus(r.PaymentStatus),
			TransactionID: r.TransactionID,
			PaidAt:        utc(r.PaidAt),
			RefundedAt:    utc(r.PaymentRefundedAt),
			RefundAmount:  r.RefundAmount,
		},
		Shipping: domain.Shipping{
			Method:        r.ShippingMethod,
			Carrier:       r.ShippingCarrier,
			Cost:          r.ShippingCost,
			EstimatedDays: r.ShippingDays,
		},
		Status:         domain.Status(r.Status),
		Subtotal:       r.Subtotal,
		Tax:            r.Tax,
		ShippingCost:   r.ShippingCost,
		Discount:       r.Discount,
		Total:          r.Total,
		Currency:       r.Currency,
		Notes:          r.Notes,
		TrackingNumber: r.TrackingNumber,
		DeliveredAt:    utc(r.DeliveredAt),
		CancelledAt:    utc(r.CancelledAt),
		RefundedAt:     utc(r.RefundedAt),
		Version:        r.Version,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	for _, item := range r.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
		})
	}
	return o
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
