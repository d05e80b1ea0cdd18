package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	"github.com/Apurer/commerce-engine/internal/shared/money"
)

type normalizedCart struct {
	UserID          string           `json:"userId"`
	Items           []normalizedItem `json:"items"`
	ShippingAddress domain.Address   `json:"shippingAddress"`
	BillingAddress  *domain.Address  `json:"billingAddress,omitempty"`
	PaymentMethod   string           `json:"paymentMethod"`
	ShippingMethod  string           `json:"shippingMethod"`
	Carrier         string           `json:"carrier"`
	ShippingCost    string           `json:"shippingCost"`
	EstimatedDays   int              `json:"estimatedDays"`
	Tax             string           `json:"tax"`
	Discount        string           `json:"discount"`
	Currency        string           `json:"currency"`
	Notes           string           `json:"notes"`
}

type normalizedItem struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int64  `json:"quantity"`
}

// FingerprintCart builds a deterministic hash of the cart, excluding the idempotency key.
func FingerprintCart(cart ports.CartSnapshot, defaultCurrency string) (string, error) {
	payload, err := json.Marshal(normalizeCart(cart, defaultCurrency))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeCart(cart ports.CartSnapshot, defaultCurrency string) normalizedCart {
	currency := strings.ToUpper(strings.TrimSpace(cart.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	normalized := normalizedCart{
		UserID:          strings.TrimSpace(cart.UserID),
		ShippingAddress: cart.ShippingAddress,
		BillingAddress:  cart.BillingAddress,
		PaymentMethod:   string(cart.PaymentMethod),
		ShippingMethod:  strings.TrimSpace(cart.Shipping.Method),
		Carrier:         strings.TrimSpace(cart.Shipping.Carrier),
		ShippingCost:    money.Normalize(cart.Shipping.Cost).StringFixed(money.Scale),
		EstimatedDays:   cart.Shipping.EstimatedDays,
		Tax:             money.Normalize(cart.Tax).StringFixed(money.Scale),
		Discount:        money.Normalize(cart.Discount).StringFixed(money.Scale),
		Currency:        currency,
		Notes:           strings.TrimSpace(cart.Notes),
	}
	for _, item := range cart.Items {
		normalized.Items = append(normalized.Items, normalizedItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return normalized
}
