package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogmemory "github.com/Apurer/commerce-engine/internal/domains/catalog/adapters/memory"
	catalogapp "github.com/Apurer/commerce-engine/internal/domains/catalog/application"
	catalogdomain "github.com/Apurer/commerce-engine/internal/domains/catalog/domain"
	catalogports "github.com/Apurer/commerce-engine/internal/domains/catalog/ports"
	ordercatalog "github.com/Apurer/commerce-engine/internal/domains/orders/adapters/catalog"
	"github.com/Apurer/commerce-engine/internal/domains/orders/adapters/memory"
	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
	"github.com/Apurer/commerce-engine/internal/shared/identifier"
	"github.com/Apurer/commerce-engine/internal/shared/money"
)

type fixture struct {
	svc     *Service
	repo    ports.Repository
	catalog *catalogapp.Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	return newFixtureWithRepo(t, memory.NewRepository(), opts...)
}

func newFixtureWithRepo(t *testing.T, repo ports.Repository, opts ...Option) *fixture {
	t.Helper()
	store := catalogmemory.NewRepository()
	catalog := catalogapp.NewService(store, store)
	bridge := ordercatalog.NewBridge(catalog)
	return &fixture{
		svc:     NewService(repo, bridge, bridge, bridge, opts...),
		repo:    repo,
		catalog: catalog,
	}
}

func (f *fixture) product(t *testing.T, name, price string, quantity int64) string {
	t.Helper()
	inv := catalogdomain.DefaultInventory(quantity)
	p, err := f.catalog.CreateProduct(context.Background(), catalogports.CreateProductInput{
		Name:      name,
		SKU:       "SKU-" + name,
		Price:     money.MustParse(price),
		Inventory: &inv,
		Status:    catalogdomain.StatusActive,
	})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) stock(t *testing.T, productID string) int64 {
	t.Helper()
	status, err := f.catalog.StockStatus(context.Background(), catalogdomain.StockKey{ProductID: productID})
	require.NoError(t, err)
	return status.Inventory.Quantity
}

func cart(items ...ports.CartItem) ports.CartSnapshot {
	return ports.CartSnapshot{
		UserID: "user-1",
		Items:  items,
		ShippingAddress: domain.Address{
			Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
		},
		PaymentMethod: domain.PaymentCard,
		Shipping:      ports.ShippingOption{Method: "standard", Cost: money.MustParse("5.00"), EstimatedDays: 3},
		Tax:           money.MustParse("8.00"),
		Discount:      money.MustParse("10.00"),
	}
}

func assertTotalInvariant(t *testing.T, order *domain.Order) {
	t.Helper()
	expected := order.Subtotal.Add(order.Tax).Add(order.ShippingCost).Sub(order.Discount)
	assert.True(t, expected.Equal(order.Total), "total %s != %s", order.Total, expected)
}

func TestCreateOrder_ComputesTotalAndCancelReleasesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "40.00", 5)
	pen := f.product(t, "pen", "20.00", 3)

	order, err := f.svc.CreateOrder(ctx, cart(
		ports.CartItem{ProductID: mug, Quantity: 2},
		ports.CartItem{ProductID: pen, Quantity: 1},
	))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Regexp(t, `^ORD-[0-9A-Z]+-[0-9A-Z]{6}$`, order.OrderNumber)
	assert.Equal(t, "100.00", order.Subtotal.StringFixed(money.Scale))
	assert.Equal(t, "103.00", order.Total.StringFixed(money.Scale))
	assert.Equal(t, "80.00", order.Items[0].LineTotal.StringFixed(money.Scale))
	assert.Equal(t, order.ShippingAddress, order.BillingAddress)
	assertTotalInvariant(t, order)
	assert.Equal(t, int64(3), f.stock(t, mug))
	assert.Equal(t, int64(2), f.stock(t, pen))

	cancelled, err := f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assertTotalInvariant(t, cancelled)
	assert.Equal(t, int64(5), f.stock(t, mug))
	assert.Equal(t, int64(3), f.stock(t, pen))

	again, err := f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, *cancelled.CancelledAt, *again.CancelledAt)
	assert.Equal(t, int64(5), f.stock(t, mug))
}

func TestCreateOrder_RollsBackEarlierReservations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "10.00", 5)
	pen := f.product(t, "pen", "2.00", 1)

	_, err := f.svc.CreateOrder(ctx, cart(
		ports.CartItem{ProductID: mug, Quantity: 4},
		ports.CartItem{ProductID: pen, Quantity: 2},
	))
	require.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)
	assert.Equal(t, int64(5), f.stock(t, mug))
	assert.Equal(t, int64(1), f.stock(t, pen))
}

func TestCreateOrder_RejectsBadCarts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "10.00", 5)

	_, err := f.svc.CreateOrder(ctx, cart())
	require.ErrorIs(t, err, domain.ErrEmptyOrder)

	_, err = f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 0}))
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: "missing", Quantity: 1}))
	require.ErrorIs(t, err, catalogports.ErrNotFound)

	noEstimate := cart(ports.CartItem{ProductID: mug, Quantity: 1})
	noEstimate.Shipping.EstimatedDays = 0
	_, err = f.svc.CreateOrder(ctx, noEstimate)
	require.ErrorIs(t, err, domain.ErrInvalidEstimatedDays)
	require.ErrorIs(t, err, ErrInvalidInput)

	inactive, err := f.catalog.ChangeStatus(ctx, mug, catalogdomain.StatusInactive)
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: inactive.ID, Quantity: 1}))
	require.ErrorIs(t, err, ports.ErrProductUnavailable)
	assert.Equal(t, int64(5), f.stock(t, mug))
}

func TestCreateOrder_DiscountAboveTotalFailsWithoutReserving(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "1.00", 5)

	c := cart(ports.CartItem{ProductID: mug, Quantity: 1})
	c.Discount = money.MustParse("50")
	_, err := f.svc.CreateOrder(ctx, c)
	require.ErrorIs(t, err, money.ErrInvalidMoneyValue)
	assert.Equal(t, int64(5), f.stock(t, mug))
}

func TestCreateOrder_CurrencyMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "1.00", 5)

	c := cart(ports.CartItem{ProductID: mug, Quantity: 1})
	c.Currency = "EUR"
	_, err := f.svc.CreateOrder(ctx, c)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

type collidingRepo struct {
	ports.Repository
	collisions int
	calls      atomic.Int32
}

func (c *collidingRepo) Create(ctx context.Context, order *domain.Order) error {
	if int(c.calls.Add(1)) <= c.collisions {
		return ports.ErrDuplicateOrderNumber
	}
	return c.Repository.Create(ctx, order)
}

func TestCreateOrder_RetriesOrderNumberCollisions(t *testing.T) {
	ctx := context.Background()
	repo := &collidingRepo{Repository: memory.NewRepository(), collisions: 2}
	f := newFixtureWithRepo(t, repo)
	mug := f.product(t, "mug", "3.00", 5)

	order, err := f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, int32(3), repo.calls.Load())
	assert.Equal(t, int64(4), f.stock(t, mug))

	byNumber, err := f.svc.GetOrderByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byNumber.ID)
}

func TestCreateOrder_IdGenerationExhausted(t *testing.T) {
	ctx := context.Background()
	repo := &collidingRepo{Repository: memory.NewRepository(), collisions: 100}
	f := newFixtureWithRepo(t, repo, WithOrderNumberAttempts(3))
	mug := f.product(t, "mug", "3.00", 5)

	_, err := f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 2}))
	require.ErrorIs(t, err, identifier.ErrIdGenerationFailed)
	assert.Equal(t, int32(3), repo.calls.Load())
	assert.Equal(t, int64(5), f.stock(t, mug))
}

func TestTransitionOrder_IdempotentForEveryState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "3.00", 50)

	path := []domain.Status{domain.StatusConfirmed, domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered}
	order, err := f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, ports.PaymentInput{OrderID: order.ID, Status: domain.PaymentPaid, TransactionID: "tx-1"})
	require.NoError(t, err)

	for _, status := range append([]domain.Status{domain.StatusPending}, path...) {
		if status != domain.StatusPending {
			_, err := f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: status})
			require.NoError(t, err)
		}
		before, err := f.svc.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		after, err := f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: status})
		require.NoError(t, err, status)
		assert.Equal(t, before.Version, after.Version, status)
		assertTotalInvariant(t, after)
	}

	product, err := f.catalog.GetProduct(ctx, mug)
	require.NoError(t, err)
	assert.Equal(t, int64(1), product.SalesCount)

	refunded, err := f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusRefunded})
	require.NoError(t, err)
	again, err := f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusRefunded})
	require.NoError(t, err)
	assert.Equal(t, refunded.Version, again.Version)
	assert.Equal(t, int64(50), f.stock(t, mug))
}

func TestTransitionOrder_IllegalTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "3.00", 10)
	order, err := f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusShipped})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusRefunded})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.Status("LOST")})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusCancelled})
	require.NoError(t, err)
	_, err = f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusConfirmed})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: "missing", Target: domain.StatusConfirmed})
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestTransitionOrder_RefundRequiresPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "3.00", 10)
	order, err := f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 2}))
	require.NoError(t, err)
	for _, status := range []domain.Status{domain.StatusConfirmed, domain.StatusProcessing} {
		_, err = f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: status})
		require.NoError(t, err)
	}
	shipped, err := f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusShipped, TrackingNumber: "1Z999"})
	require.NoError(t, err)
	assert.Equal(t, "1Z999", shipped.TrackingNumber)

	_, err = f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusRefunded})
	require.ErrorIs(t, err, domain.ErrRefundNotAllowed)
	assert.Equal(t, int64(8), f.stock(t, mug))

	_, err = f.svc.RecordPayment(ctx, ports.PaymentInput{OrderID: order.ID, Status: domain.PaymentPaid, TransactionID: "tx-9"})
	require.NoError(t, err)
	refunded, err := f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusRefunded})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, refunded.Payment.Status)
	assert.True(t, refunded.Payment.RefundAmount.Equal(refunded.Total))
	require.NotNil(t, refunded.RefundedAt)
	require.NotNil(t, refunded.Payment.RefundedAt)
	assert.Equal(t, int64(10), f.stock(t, mug))
	assertTotalInvariant(t, refunded)
}

func TestRecordPayment_Rules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "3.00", 10)
	order, err := f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 1}))
	require.NoError(t, err)

	failed, err := f.svc.RecordPayment(ctx, ports.PaymentInput{OrderID: order.ID, Status: domain.PaymentFailed})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, failed.Payment.Status)
	assert.Nil(t, failed.Payment.PaidAt)

	paid, err := f.svc.RecordPayment(ctx, ports.PaymentInput{OrderID: order.ID, Status: domain.PaymentPaid, TransactionID: "tx-2"})
	require.NoError(t, err)
	assert.Equal(t, "tx-2", paid.Payment.TransactionID)
	require.NotNil(t, paid.Payment.PaidAt)

	same, err := f.svc.RecordPayment(ctx, ports.PaymentInput{OrderID: order.ID, Status: domain.PaymentPaid})
	require.NoError(t, err)
	assert.Equal(t, paid.Version, same.Version)

	_, err = f.svc.RecordPayment(ctx, ports.PaymentInput{OrderID: order.ID, Status: domain.PaymentFailed})
	require.ErrorIs(t, err, domain.ErrIllegalPaymentChange)
}

func TestTransitionOrder_ConcurrentCancelReleasesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "3.00", 10)
	order, err := f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 4}))
	require.NoError(t, err)
	require.Equal(t, int64(6), f.stock(t, mug))

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: order.ID, Target: domain.StatusCancelled})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(10), f.stock(t, mug))
}

func TestConcurrentOrdersCannotOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mug := f.product(t, "mug", "3.00", 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 3}))
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			require.True(t, errors.Is(err, catalogdomain.ErrInsufficientStock))
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, int64(2), f.stock(t, mug))
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	mug := f.product(t, "mug", "3.00", 10)
	pen := f.product(t, "pen", "1.00", 10)

	first, err := f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: mug, Quantity: 1}))
	require.NoError(t, err)
	second, err := f.svc.CreateOrder(ctx, cart(ports.CartItem{ProductID: pen, Quantity: 1}))
	require.NoError(t, err)

	list, err := f.svc.ListOrdersByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	delivered, err := f.svc.HasDeliveredPurchase(ctx, "user-1", mug)
	require.NoError(t, err)
	assert.False(t, delivered)
	for _, status := range []domain.Status{domain.StatusConfirmed, domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
		_, err := f.svc.TransitionOrder(ctx, ports.TransitionInput{OrderID: first.ID, Target: status})
		require.NoError(t, err)
	}
	delivered, err = f.svc.HasDeliveredPurchase(ctx, "user-1", mug)
	require.NoError(t, err)
	assert.True(t, delivered)
	delivered, err = f.svc.HasDeliveredPurchase(ctx, "user-1", pen)
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestCreateOrder_IdempotencyKeyReplaysFirstOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithIdempotencyStore(memory.NewIdempotencyStore()))
	mug := f.product(t, "mug", "10.00", 5)
	keyed := cart(ports.CartItem{ProductID: mug, Quantity: 2})
	keyed.IdempotencyKey = "checkout-42"

	first, err := f.svc.CreateOrder(ctx, keyed)
	require.NoError(t, err)
	second, err := f.svc.CreateOrder(ctx, keyed)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, int64(3), f.stock(t, mug))
	orders, err := f.svc.ListOrdersByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCreateOrder_IdempotencyKeyReusedForDifferentCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithIdempotencyStore(memory.NewIdempotencyStore()))
	mug := f.product(t, "mug", "10.00", 5)
	keyed := cart(ports.CartItem{ProductID: mug, Quantity: 2})
	keyed.IdempotencyKey = "checkout-42"
	_, err := f.svc.CreateOrder(ctx, keyed)
	require.NoError(t, err)

	keyed.Items[0].Quantity = 1
	_, err = f.svc.CreateOrder(ctx, keyed)
	require.ErrorIs(t, err, ports.ErrIdempotencyConflict)
	assert.True(t, errkind.ClientCorrectable(err))
	assert.False(t, errkind.Retryable(err))
	assert.Equal(t, int64(3), f.stock(t, mug))
}

func TestCreateOrder_IdempotencyKeyRetriedAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithIdempotencyStore(memory.NewIdempotencyStore()))
	mug := f.product(t, "mug", "10.00", 1)
	keyed := cart(ports.CartItem{ProductID: mug, Quantity: 2})
	keyed.IdempotencyKey = "checkout-42"

	_, err := f.svc.CreateOrder(ctx, keyed)
	require.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)
	assert.Equal(t, int64(1), f.stock(t, mug))

	_, err = f.catalog.Restock(ctx, catalogdomain.StockKey{ProductID: mug}, 4)
	require.NoError(t, err)
	order, err := f.svc.CreateOrder(ctx, keyed)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.stock(t, mug))

	again, err := f.svc.CreateOrder(ctx, keyed)
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)
	assert.Equal(t, int64(3), f.stock(t, mug))
}

func TestCreateOrder_ConcurrentIdempotentPlacements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithIdempotencyStore(memory.NewIdempotencyStore()))
	mug := f.product(t, "mug", "10.00", 5)
	keyed := cart(ports.CartItem{ProductID: mug, Quantity: 2})
	keyed.IdempotencyKey = "checkout-42"

	ids := make([]string, 2)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := f.svc.CreateOrder(ctx, keyed)
			if assert.NoError(t, err) {
				ids[i] = order.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, int64(3), f.stock(t, mug))
	orders, err := f.svc.ListOrdersByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestFingerprintCart_IgnoresKeyAndFormatting(t *testing.T) {
	base := cart(ports.CartItem{ProductID: "prod-1", Quantity: 2})
	base.IdempotencyKey = "a"
	other := cart(ports.CartItem{ProductID: "prod-1", Quantity: 2})
	other.IdempotencyKey = "b"
	other.Currency = "usd"
	other.Tax = money.MustParse("8")

	first, err := FingerprintCart(base, money.DefaultCurrency)
	require.NoError(t, err)
	second, err := FingerprintCart(other, money.DefaultCurrency)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other.Items[0].Quantity = 3
	third, err := FingerprintCart(other, money.DefaultCurrency)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}
