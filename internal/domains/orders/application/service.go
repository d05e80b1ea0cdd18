package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	"github.com/Apurer/commerce-engine/internal/shared/identifier"
	"github.com/Apurer/commerce-engine/internal/shared/money"
)

// Service orchestrates order lifecycle use cases.
type Service struct {
	repo            ports.Repository
	catalog         ports.ProductCatalog
	inventory       ports.Inventory
	sales           ports.SalesRecorder
	idempotency     ports.IdempotencyStore
	ids             *identifier.Generator
	numberAttempts  int
	defaultCurrency string
	now             func() time.Time
	logger          *slog.Logger
}

// Option customises the order service.
type Option func(*Service)

// WithIdentifierGenerator overrides the order number generator.
func WithIdentifierGenerator(g *identifier.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithIdempotencyStore enables replay of placements that carry an idempotency key.
func WithIdempotencyStore(store ports.IdempotencyStore) Option {
	return func(s *Service) {
		if store != nil {
			s.idempotency = store
		}
	}
}

// WithOrderNumberAttempts bounds regeneration after an order number collision.
func WithOrderNumberAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.numberAttempts = n
		}
	}
}

// WithDefaultCurrency sets the currency applied when a cart leaves it blank.
func WithDefaultCurrency(code string) Option {
	return func(s *Service) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			s.defaultCurrency = code
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger records compensation failures that cannot be returned to the caller.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(repo ports.Repository, catalog ports.ProductCatalog, inventory ports.Inventory, sales ports.SalesRecorder, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		catalog:         catalog,
		inventory:       inventory,
		sales:           sales,
		ids:             identifier.NewGenerator(),
		numberAttempts:  identifier.DefaultIDAttempts,
		defaultCurrency: money.DefaultCurrency,
		now:             time.Now,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateOrder turns a cart snapshot into a PENDING order. Stock for every line
// is reserved in order; if any later step fails every reservation made by this
// call is released before the error is returned.
//
// A cart carrying an idempotency key resolves to one order ID. Repeating it
// returns the stored order without reserving stock again; reusing the key for a
// different cart fails with ErrIdempotencyConflict.
func (s *Service) CreateOrder(ctx context.Context, cart ports.CartSnapshot) (*domain.Order, error) {
	order, err := s.draftOrder(ctx, cart)
	if err != nil {
		return nil, err
	}
	if existing, err := s.claimIdempotencyKey(ctx, cart, order); existing != nil || err != nil {
		return existing, err
	}

	reserved := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if err := s.inventory.Reserve(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
			s.compensate(ctx, reserved)
			return nil, fmt.Errorf("reserve %s: %w", item.SKU, err)
		}
		reserved = append(reserved, item)
	}

	err = identifier.RetryOnCollision(s.numberAttempts, isDuplicateNumber, func(int) error {
		number, err := s.ids.OrderNumber()
		if err != nil {
			return err
		}
		order.OrderNumber = number
		return s.repo.Create(ctx, order)
	})
	if err != nil {
		s.compensate(ctx, reserved)
		if errors.Is(err, ports.ErrDuplicateOrder) && strings.TrimSpace(cart.IdempotencyKey) != "" {
			return s.repo.GetByID(ctx, order.ID)
		}
		return nil, err
	}
	return order.Clone(), nil
}

// claimIdempotencyKey binds the cart's key to order.ID. When an earlier call
// already owns the key, order adopts its ID and the stored order is returned if
// it was committed.
func (s *Service) claimIdempotencyKey(ctx context.Context, cart ports.CartSnapshot, order *domain.Order) (*domain.Order, error) {
	key := strings.TrimSpace(cart.IdempotencyKey)
	if key == "" || s.idempotency == nil {
		return nil, nil
	}
	hash, err := FingerprintCart(cart, s.defaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("fingerprint cart: %w", err)
	}
	record, err := s.idempotency.Claim(ctx, ports.IdempotencyRecord{Key: key, RequestHash: hash, OrderID: order.ID})
	if err != nil {
		return nil, err
	}
	if record.OrderID == order.ID {
		return nil, nil
	}
	order.ID = record.OrderID
	existing, err := s.repo.GetByID(ctx, record.OrderID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, nil
	}
	return existing, err
}

func (s *Service) draftOrder(ctx context.Context, cart ports.CartSnapshot) (*domain.Order, error) {
	if len(cart.Items) == 0 {
		return nil, mapError(domain.ErrEmptyOrder)
	}
	currency := strings.ToUpper(strings.TrimSpace(cart.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	now := s.now().UTC()
	billing := cart.ShippingAddress
	if cart.BillingAddress != nil {
		billing = *cart.BillingAddress
	}
	order := &domain.Order{
		ID:              identifier.NewID("ord_"),
		UserID:          strings.TrimSpace(cart.UserID),
		ShippingAddress: cart.ShippingAddress,
		BillingAddress:  billing,
		Payment:         domain.Payment{Method: cart.PaymentMethod, Status: domain.PaymentPending},
		Shipping: domain.Shipping{
			Method:        strings.TrimSpace(cart.Shipping.Method),
			Carrier:       strings.TrimSpace(cart.Shipping.Carrier),
			Cost:          money.Normalize(cart.Shipping.Cost),
			EstimatedDays: cart.Shipping.EstimatedDays,
		},
		Status:       domain.StatusPending,
		Tax:          cart.Tax,
		ShippingCost: cart.Shipping.Cost,
		Discount:     cart.Discount,
		Currency:     currency,
		Notes:        strings.TrimSpace(cart.Notes),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, line := range cart.Items {
		if line.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
	}
	for _, line := range cart.Items {
		snapshot, err := s.catalog.Snapshot(ctx, line.ProductID, line.VariantID)
		if err != nil {
			return nil, err
		}
		if snapshot.Currency != "" && snapshot.Currency != currency {
			return nil, fmt.Errorf("%w: %s is priced in %s", ErrCurrencyMismatch, snapshot.SKU, snapshot.Currency)
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Name:      snapshot.Name,
			SKU:       snapshot.SKU,
			UnitPrice: snapshot.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	if err := order.CalculateTotals(); err != nil {
		return nil, mapError(err)
	}
	if err := order.Validate(); err != nil {
		return nil, mapError(err)
	}
	return order, nil
}

// TransitionOrder moves an order along the status graph. The new status is
// claimed with an optimistic write before side effects run, so when callers race
// only the winner releases stock or records sales.
func (s *Service) TransitionOrder(ctx context.Context, input ports.TransitionInput) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == input.Target {
		return order, nil
	}
	expected := order.Version
	effect, err := order.Transition(input.Target, input.TrackingNumber, s.now().UTC())
	if err != nil {
		return nil, mapError(err)
	}
	if err := s.claim(ctx, order, expected); err != nil {
		if errors.Is(err, ports.ErrConcurrentUpdate) {
			return s.resolveRace(ctx, input.OrderID, func(o *domain.Order) bool { return o.Status == input.Target }, err)
		}
		return nil, err
	}
	if err := s.applyEffect(ctx, order, effect); err != nil {
		return order, err
	}
	return order, nil
}

// RecordPayment applies a payment outcome to the order.
func (s *Service) RecordPayment(ctx context.Context, input ports.PaymentInput) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	expected := order.Version
	changed, err := order.RecordPayment(input.Status, input.TransactionID, s.now().UTC())
	if err != nil {
		return nil, mapError(err)
	}
	if !changed {
		return order, nil
	}
	if err := s.claim(ctx, order, expected); err != nil {
		if errors.Is(err, ports.ErrConcurrentUpdate) {
			return s.resolveRace(ctx, input.OrderID, func(o *domain.Order) bool { return o.Payment.Status == input.Status }, err)
		}
		return nil, err
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.repo.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(orderNumber)))
}

func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) HasDeliveredPurchase(ctx context.Context, userID, productID string) (bool, error) {
	return s.repo.HasDeliveredPurchase(ctx, userID, productID)
}

func (s *Service) claim(ctx context.Context, order *domain.Order, expected int64) error {
	order.Version = expected + 1
	order.UpdatedAt = s.now().UTC()
	if err := order.Validate(); err != nil {
		return mapError(err)
	}
	return s.repo.Update(ctx, order, expected)
}

// resolveRace reloads an order after losing an optimistic write. If the winner
// already reached the requested state the call is treated as a duplicate.
func (s *Service) resolveRace(ctx context.Context, id string, reached func(*domain.Order) bool, cause error) (*domain.Order, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	if reached(current) {
		return current, nil
	}
	return nil, cause
}

func (s *Service) applyEffect(ctx context.Context, order *domain.Order, effect domain.Effect) error {
	var errs []error
	switch effect {
	case domain.EffectReleaseStock:
		for _, item := range order.Items {
			if err := s.inventory.Release(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", item.SKU, err))
			}
		}
	case domain.EffectRecordSales:
		for _, item := range order.Items {
			if err := s.sales.RecordSale(ctx, item.ProductID, item.Quantity); err != nil {
				errs = append(errs, fmt.Errorf("record sale %s: %w", item.SKU, err))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: order %s: %w", ErrSideEffectsIncomplete, order.OrderNumber, errors.Join(errs...))
}

// compensate releases reservations made earlier in the same request. It runs
// detached from ctx cancellation so an aborted request still returns its stock.
func (s *Service) compensate(ctx context.Context, reserved []domain.OrderItem) {
	ctx = context.WithoutCancel(ctx)
	for i := len(reserved) - 1; i >= 0; i-- {
		item := reserved[i]
		if err := s.inventory.Release(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "failed to release reservation during compensation",
				slog.String("product.id", item.ProductID),
				slog.String("variant.id", item.VariantID),
				slog.Int64("quantity", item.Quantity),
				slog.String("error", err.Error()))
		}
	}
}

func isDuplicateNumber(err error) bool {
	return errors.Is(err, ports.ErrDuplicateOrderNumber)
}

var _ ports.Service = (*Service)(nil)
