package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/commerce-engine/internal/shared/errkind"
	"github.com/Apurer/commerce-engine/internal/shared/money"
)

// Status enumerates the catalog lifecycle of a product.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusArchived Status = "ARCHIVED"
)

// VariantStatus enumerates whether a variant can be sold.
type VariantStatus string

const (
	VariantActive   VariantStatus = "ACTIVE"
	VariantInactive VariantStatus = "INACTIVE"
)

const (
	// DefaultLowStockThreshold is applied to new products that do not set one.
	DefaultLowStockThreshold int64 = 10
	maxNameLength                  = 200
)

var (
	ErrInvalidName      = errkind.New(errkind.InvalidInput, "product name is required and must be at most 200 characters")
	ErrInvalidSKU       = errkind.New(errkind.InvalidInput, "sku is required")
	ErrInvalidPrice     = errkind.New(errkind.InvalidMoneyValue, "price must be zero or greater")
	ErrInvalidCurrency  = errkind.New(errkind.InvalidInput, "currency is not supported")
	ErrInvalidStatus    = errkind.New(errkind.InvalidInput, "product status is invalid")
	ErrInvalidInventory = errkind.New(errkind.InvalidInput, "inventory quantity and threshold must be zero or greater")
	ErrVariantNotFound  = errkind.New(errkind.NotFound, "variant not found")
)

// Variant is a sellable option of a product with its own price and stock.
type Variant struct {
	ID           string
	Name         string
	SKU          string
	Price        decimal.Decimal
	ComparePrice *decimal.Decimal
	Inventory    Inventory
	Status       VariantStatus
}

// Product is the catalog aggregate referenced by orders, reviews and sales counters.
type Product struct {
	ID            string
	Name          string
	Slug          string
	SKU           string
	Price         decimal.Decimal
	ComparePrice  *decimal.Decimal
	Currency      string
	Inventory     Inventory
	Variants      []Variant
	Status        Status
	AverageRating float64
	ReviewCount   int64
	SalesCount    int64
	ViewCount     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate enforces the invariants a product must hold before it is stored.
func (p *Product) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidName
	}
	if strings.TrimSpace(p.SKU) == "" {
		return ErrInvalidSKU
	}
	if err := validatePrice(p.Price, p.ComparePrice); err != nil {
		return err
	}
	if !money.SupportedCurrency(p.Currency) {
		return ErrInvalidCurrency
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	if err := p.Inventory.validate(); err != nil {
		return err
	}
	for i := range p.Variants {
		if err := p.Variants[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// ChangeStatus moves the product to a new catalog status.
func (p *Product) ChangeStatus(status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	p.Status = status
	return nil
}

// Sellable reports whether new orders may reference the product.
func (p *Product) Sellable() bool {
	return p.Status == StatusActive
}

// IsLowStock is true when stock is tracked and at or below the threshold.
func (p *Product) IsLowStock() bool { return p.Inventory.IsLowStock() }

// IsInStock is true when stock is untracked or positive.
func (p *Product) IsInStock() bool { return p.Inventory.IsInStock() }

// DiscountPercent reports the saving against the compare price.
func (p *Product) DiscountPercent() int64 {
	if p.ComparePrice == nil {
		return 0
	}
	return money.DiscountPercent(p.Price, *p.ComparePrice)
}

// FindVariant returns the variant with the given identifier.
func (p *Product) FindVariant(id string) (*Variant, error) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], nil
		}
	}
	return nil, ErrVariantNotFound
}

// Clone returns a deep copy safe to hand to callers.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ComparePrice = cloneDecimal(p.ComparePrice)
	if p.Variants != nil {
		clone.Variants = make([]Variant, len(p.Variants))
		for i, v := range p.Variants {
			v.ComparePrice = cloneDecimal(v.ComparePrice)
			clone.Variants[i] = v
		}
	}
	return &clone
}

// IsLowStock is true when stock is tracked and at or below the threshold.
func (v *Variant) IsLowStock() bool { return v.Inventory.IsLowStock() }

// IsInStock is true when stock is untracked or positive.
func (v *Variant) IsInStock() bool { return v.Inventory.IsInStock() }

// Sellable reports whether the variant accepts new orders.
func (v *Variant) Sellable() bool { return v.Status == VariantActive }

func (v *Variant) validate() error {
	if strings.TrimSpace(v.Name) == "" || len(v.Name) > maxNameLength {
		return ErrInvalidName
	}
	if strings.TrimSpace(v.SKU) == "" {
		return ErrInvalidSKU
	}
	if err := validatePrice(v.Price, v.ComparePrice); err != nil {
		return err
	}
	if v.Status != VariantActive && v.Status != VariantInactive {
		return ErrInvalidStatus
	}
	return v.Inventory.validate()
}

func validatePrice(price decimal.Decimal, compare *decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	if compare != nil && compare.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// Valid reports whether the status is a known catalog status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInactive, StatusArchived:
		return true
	default:
		return false
	}
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
