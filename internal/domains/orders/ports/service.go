package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
)

// CartItem is one requested line of a cart snapshot.
type CartItem struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int64  `json:"quantity"`
}

// ShippingOption is the delivery choice made at checkout.
type ShippingOption struct {
	Method        string          `json:"method"`
	Carrier       string          `json:"carrier,omitempty"`
	Cost          decimal.Decimal `json:"cost"`
	EstimatedDays int             `json:"estimatedDays,omitempty"`
}

// CartSnapshot is the immutable checkout request an order is created from.
type CartSnapshot struct {
	IdempotencyKey  string               `json:"idempotencyKey,omitempty"`
	UserID          string               `json:"userId"`
	Items           []CartItem           `json:"items"`
	ShippingAddress domain.Address       `json:"shippingAddress"`
	BillingAddress  *domain.Address      `json:"billingAddress,omitempty"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod"`
	Shipping        ShippingOption       `json:"shipping"`
	Tax             decimal.Decimal      `json:"tax"`
	Discount        decimal.Decimal      `json:"discount"`
	Currency        string               `json:"currency,omitempty"`
	Notes           string               `json:"notes,omitempty"`
}

// TransitionInput requests a status change.
type TransitionInput struct {
	OrderID        string        `json:"orderId"`
	Target         domain.Status `json:"target"`
	TrackingNumber string        `json:"trackingNumber,omitempty"`
}

// PaymentInput records a settlement outcome reported by a payment provider.
type PaymentInput struct {
	OrderID       string               `json:"orderId"`
	Status        domain.PaymentStatus `json:"status"`
	TransactionID string               `json:"transactionId,omitempty"`
}

// Service exposes order lifecycle use cases to adapters.
type Service interface {
	CreateOrder(ctx context.Context, cart CartSnapshot) (*domain.Order, error)
	TransitionOrder(ctx context.Context, input TransitionInput) (*domain.Order, error)
	RecordPayment(ctx context.Context, input PaymentInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	HasDeliveredPurchase(ctx context.Context, userID, productID string) (bool, error)
}
