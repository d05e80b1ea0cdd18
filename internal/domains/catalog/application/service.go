package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	"github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
	"github.com/Apurer/commerce-engine/internal/shared/identifier"
	"github.com/Apurer/commerce-engine/internal/shared/money"
)

// Service orchestrates catalog and inventory use cases.
type Service struct {
	repo            ports.Repository
	ledger          ports.InventoryLedger
	ids             *identifier.Generator
	slugAttempts    int
	defaultCurrency string
}

// Option customises the catalog service.
type Option func(*Service)

// WithIdentifierGenerator overrides the generator used for slugs.
func WithIdentifierGenerator(g *identifier.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithSlugAttempts bounds numbered slug candidates before the timestamp fallback.
func WithSlugAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slugAttempts = n
		}
	}
}

// WithDefaultCurrency sets the currency applied when input leaves it blank.
func WithDefaultCurrency(code string) Option {
	return func(s *Service) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			s.defaultCurrency = code
		}
	}
}

func NewService(repo ports.Repository, ledger ports.InventoryLedger, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		ledger:          ledger,
		ids:             identifier.NewGenerator(),
		slugAttempts:    identifier.DefaultSlugAttempts,
		defaultCurrency: money.DefaultCurrency,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) CreateProduct(ctx context.Context, input ports.CreateProductInput) (*domain.Product, error) {
	product := &domain.Product{
		ID:           identifier.NewID("prod_"),
		Name:         strings.TrimSpace(input.Name),
		SKU:          strings.TrimSpace(input.SKU),
		Price:        money.Normalize(input.Price),
		ComparePrice: normalizePtr(input.ComparePrice),
		Currency:     strings.ToUpper(strings.TrimSpace(input.Currency)),
		Inventory:    inventoryOrDefault(input.Inventory),
		Status:       input.Status,
	}
	if product.Currency == "" {
		product.Currency = s.defaultCurrency
	}
	if product.Status == "" {
		product.Status = domain.StatusDraft
	}
	for _, v := range input.Variants {
		status := v.Status
		if status == "" {
			status = domain.VariantActive
		}
		product.Variants = append(product.Variants, domain.Variant{
			ID:           identifier.NewID("var_"),
			Name:         strings.TrimSpace(v.Name),
			SKU:          strings.TrimSpace(v.SKU),
			Price:        money.Normalize(v.Price),
			ComparePrice: normalizePtr(v.ComparePrice),
			Inventory:    inventoryOrDefault(v.Inventory),
			Status:       status,
		})
	}
	if err := product.Validate(); err != nil {
		return nil, mapError(err)
	}

	base := identifier.Slugify(product.Name)
	if base == "" {
		base = identifier.Slugify(product.SKU)
	}
	for attempt := 0; attempt < 2; attempt++ {
		slug, err := s.ids.UniqueSlug(ctx, base, s.repo.SlugExists, s.slugAttempts)
		if err != nil {
			return nil, err
		}
		product.Slug = slug
		created, err := s.repo.Create(ctx, product)
		if errors.Is(err, ports.ErrDuplicateSlug) {
			// Another writer took the slug between the check and the insert.
			continue
		}
		return created, err
	}
	return nil, fmt.Errorf("create product %q: %w", product.Name, ports.ErrDuplicateSlug)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.repo.GetBySlug(ctx, slug)
}

func (s *Service) ChangeStatus(ctx context.Context, id string, status domain.Status) (*domain.Product, error) {
	if !status.Valid() {
		return nil, mapError(domain.ErrInvalidStatus)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *Service) ReserveStock(ctx context.Context, key domain.StockKey, quantity int64) error {
	return s.ledger.Reserve(ctx, key, quantity)
}

func (s *Service) ReleaseStock(ctx context.Context, key domain.StockKey, quantity int64) error {
	return s.ledger.Release(ctx, key, quantity)
}

// Restock is an administrative increase of available stock.
func (s *Service) Restock(ctx context.Context, key domain.StockKey, quantity int64) (*ports.StockStatus, error) {
	if err := s.ledger.Release(ctx, key, quantity); err != nil {
		return nil, err
	}
	return s.StockStatus(ctx, key)
}

func (s *Service) StockStatus(ctx context.Context, key domain.StockKey) (*ports.StockStatus, error) {
	level, err := s.ledger.Level(ctx, key)
	if err != nil {
		return nil, err
	}
	return &ports.StockStatus{
		Key:       key,
		Inventory: level,
		InStock:   level.IsInStock(),
		LowStock:  level.IsLowStock(),
	}, nil
}

func (s *Service) RecordView(ctx context.Context, id string) error {
	return s.repo.IncrementViews(ctx, id)
}

func (s *Service) RecordSale(ctx context.Context, id string, quantity int64) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return s.repo.IncrementSales(ctx, id, quantity)
}

func (s *Service) UpdateRating(ctx context.Context, id string, average float64, count int64) error {
	if average < 0 || average > 5 || count < 0 {
		return fmt.Errorf("%w: rating %.1f over %d reviews", ErrInvalidInput, average, count)
	}
	return s.repo.SetRating(ctx, id, average, count)
}

func (s *Service) ListProductIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListIDs(ctx)
}

func inventoryOrDefault(inv *domain.Inventory) domain.Inventory {
	if inv == nil {
		return domain.DefaultInventory(0)
	}
	return *inv
}

func normalizePtr(v *money.Amount) *money.Amount {
	if v == nil {
		return nil
	}
	n := money.Normalize(*v)
	return &n
}

var _ ports.Service = (*Service)(nil)
