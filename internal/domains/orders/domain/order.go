package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/commerce-engine/internal/shared/errkind"
	"github.com/Apurer/commerce-engine/internal/shared/money"
)

// Status enumerates order progression.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "CARD"
	PaymentPayPal         PaymentMethod = "PAYPAL"
	PaymentStripe         PaymentMethod = "STRIPE"
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// PaymentStatus enumerates the settlement state of an order's payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

const maxNotesLength = 500

var (
	ErrEmptyOrder            = errkind.New(errkind.InvalidInput, "order must contain at least one item")
	ErrInvalidUser           = errkind.New(errkind.InvalidInput, "user id is required")
	ErrInvalidQuantity       = errkind.New(errkind.InvalidQuantity, "item quantity must be at least 1")
	ErrInvalidCurrency       = errkind.New(errkind.InvalidInput, "currency is not supported")
	ErrNotesTooLong          = errkind.New(errkind.InvalidInput, "notes must be at most 500 characters")
	ErrInvalidPaymentMethod  = errkind.New(errkind.InvalidInput, "payment method is invalid")
	ErrInvalidEstimatedDays  = errkind.New(errkind.InvalidInput, "estimated delivery days must be at least 1 when a shipping method is set")
	ErrInvalidAddress        = errkind.New(errkind.InvalidInput, "shipping address is incomplete")
	ErrInvalidStatus         = errkind.New(errkind.InvalidInput, "order status is invalid")
	ErrTotalMismatch         = errkind.New(errkind.InvalidMoneyValue, "order total does not equal subtotal + tax + shipping - discount")
	ErrIllegalTransition     = errkind.New(errkind.IllegalTransition, "illegal order status transition")
	ErrRefundNotAllowed      = errkind.New(errkind.RefundNotAllowed, "refund requires a paid order")
	ErrIllegalPaymentChange  = errkind.New(errkind.IllegalTransition, "illegal payment status change")
	ErrTrackingNumberTooLong = errkind.New(errkind.InvalidInput, "tracking number must be at most 100 characters")
)

// transitions lists the statuses reachable from each status.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
}

// Address is a postal address captured on the order.
type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Payment tracks how and whether the order was paid.
type Payment struct {
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string
	PaidAt        *time.Time
	RefundedAt    *time.Time
	RefundAmount  decimal.Decimal
}

// Shipping describes the chosen delivery option.
type Shipping struct {
	Method        string
	Carrier       string
	Cost          decimal.Decimal
	EstimatedDays int
}

// OrderItem is a line captured from the cart. Name, SKU and price are a snapshot
// taken at creation so later catalog edits do not alter history.
type OrderItem struct {
	ProductID string
	VariantID string
	Name      string
	SKU       string
	UnitPrice decimal.Decimal
	Quantity  int64
	LineTotal decimal.Decimal
}

// Order is the purchase aggregate. After creation only status, payment and
// fulfilment timestamps change.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Items           []OrderItem
	ShippingAddress Address
	BillingAddress  Address
	Payment         Payment
	Shipping        Shipping
	Status          Status
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	ShippingCost    decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	Currency        string
	Notes           string
	TrackingNumber  string
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	RefundedAt      *time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Effect is the inventory or catalog work a transition requires after it is stored.
type Effect int

const (
	EffectNone Effect = iota
	EffectReleaseStock
	EffectRecordSales
)

// CanTransition reports whether to is directly reachable from from.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether the status is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// Valid reports whether the method is an accepted payment instrument.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentPayPal, PaymentStripe, PaymentCashOnDelivery:
		return true
	default:
		return false
	}
}

// CalculateTotals derives line totals, subtotal and total from the items and charges.
func (o *Order) CalculateTotals() error {
	lines := make([]decimal.Decimal, 0, len(o.Items))
	for i := range o.Items {
		item := &o.Items[i]
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
		line, err := money.LineTotal(item.UnitPrice, item.Quantity)
		if err != nil {
			return err
		}
		item.UnitPrice = money.Normalize(item.UnitPrice)
		item.LineTotal = line
		lines = append(lines, line)
	}
	o.Subtotal = money.Sum(lines...)
	o.Tax = money.Normalize(o.Tax)
	o.ShippingCost = money.Normalize(o.ShippingCost)
	o.Discount = money.Normalize(o.Discount)
	total, err := money.ComputeTotal(o.Subtotal, o.Tax, o.ShippingCost, o.Discount)
	if err != nil {
		return err
	}
	o.Total = total
	return nil
}

// Validate enforces the aggregate invariants, including the total identity.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.UserID) == "" {
		return ErrInvalidUser
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range o.Items {
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}
	if !o.Status.Valid() {
		return ErrInvalidStatus
	}
	if !money.SupportedCurrency(o.Currency) {
		return ErrInvalidCurrency
	}
	if len(o.Notes) > maxNotesLength {
		return ErrNotesTooLong
	}
	if len(o.TrackingNumber) > 100 {
		return ErrTrackingNumberTooLong
	}
	if !o.Payment.Method.Valid() {
		return ErrInvalidPaymentMethod
	}
	if o.Shipping.EstimatedDays < 0 || (o.Shipping.Method != "" && o.Shipping.EstimatedDays < 1) {
		return ErrInvalidEstimatedDays
	}
	if !o.ShippingAddress.complete() {
		return ErrInvalidAddress
	}
	expected, err := money.ComputeTotal(o.Subtotal, o.Tax, o.ShippingCost, o.Discount)
	if err != nil {
		return err
	}
	if !expected.Equal(o.Total) {
		return ErrTotalMismatch
	}
	return nil
}

// Transition moves the order to target and stamps the matching timestamps.
// Re-applying the current status is a no-op. The returned Effect tells the
// caller which inventory or catalog side effects to run once the change is stored.
func (o *Order) Transition(target Status, trackingNumber string, now time.Time) (Effect, error) {
	if !target.Valid() {
		return EffectNone, ErrInvalidStatus
	}
	if o.Status == target {
		return EffectNone, nil
	}
	if !CanTransition(o.Status, target) {
		return EffectNone, ErrIllegalTransition
	}
	if target == StatusRefunded && o.Payment.Status != PaymentPaid {
		return EffectNone, ErrRefundNotAllowed
	}

	effect := EffectNone
	switch target {
	case StatusShipped:
		if tn := strings.TrimSpace(trackingNumber); tn != "" {
			o.TrackingNumber = tn
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
		effect = EffectRecordSales
	case StatusCancelled:
		if o.CancelledAt == nil {
			o.CancelledAt = &now
		}
		effect = EffectReleaseStock
	case StatusRefunded:
		if o.RefundedAt == nil {
			o.RefundedAt = &now
		}
		o.Payment.Status = PaymentRefunded
		if o.Payment.RefundedAt == nil {
			o.Payment.RefundedAt = &now
		}
		o.Payment.RefundAmount = o.Total
		effect = EffectReleaseStock
	}
	o.Status = target
	return effect, nil
}

// RecordPayment applies a settlement outcome. Only PENDING to PAID or FAILED and
// FAILED to PAID are allowed; repeating the current status is a no-op.
func (o *Order) RecordPayment(status PaymentStatus, transactionID string, now time.Time) (bool, error) {
	if o.Payment.Status == status {
		return false, nil
	}
	allowed := false
	switch o.Payment.Status {
	case PaymentPending:
		allowed = status == PaymentPaid || status == PaymentFailed
	case PaymentFailed:
		allowed = status == PaymentPaid
	}
	if !allowed {
		return false, ErrIllegalPaymentChange
	}
	o.Payment.Status = status
	if tx := strings.TrimSpace(transactionID); tx != "" {
		o.Payment.TransactionID = tx
	}
	if status == PaymentPaid && o.Payment.PaidAt == nil {
		o.Payment.PaidAt = &now
	}
	return true, nil
}

// CanBeCancelled reports whether the order may still be cancelled.
func (o *Order) CanBeCancelled() bool {
	return CanTransition(o.Status, StatusCancelled)
}

// CanBeRefunded reports whether a refund would be accepted now.
func (o *Order) CanBeRefunded() bool {
	return CanTransition(o.Status, StatusRefunded) && o.Payment.Status == PaymentPaid
}

// Clone returns a deep copy safe to hand to callers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]OrderItem(nil), o.Items...)
	clone.DeliveredAt = cloneTime(o.DeliveredAt)
	clone.CancelledAt = cloneTime(o.CancelledAt)
	clone.RefundedAt = cloneTime(o.RefundedAt)
	clone.Payment.PaidAt = cloneTime(o.Payment.PaidAt)
	clone.Payment.RefundedAt = cloneTime(o.Payment.RefundedAt)
	return &clone
}

func (a Address) complete() bool {
	return strings.TrimSpace(a.Line1) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.PostalCode) != "" &&
		strings.TrimSpace(a.Country) != ""
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
