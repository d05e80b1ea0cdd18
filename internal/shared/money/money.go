// Package money holds the fixed-point arithmetic used for prices and order totals.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

// Amount is a monetary value carried at Scale fractional digits.
type Amount = decimal.Decimal

// Scale is the number of fractional digits carried by every monetary amount.
const Scale int32 = 2

// ErrInvalidMoneyValue signals a negative amount or a total that would go below zero.
var ErrInvalidMoneyValue = errkind.New(errkind.InvalidMoneyValue, "invalid money value")

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Normalize rounds an amount to the monetary scale.
func Normalize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// Parse reads a decimal string into a normalized, non-negative amount.
func Parse(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMoneyValue, raw)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrInvalidMoneyValue, raw)
	}
	return Normalize(value), nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) decimal.Decimal {
	value, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return value
}

// ComputeTotal returns subtotal + tax + shippingCost - discount.
func ComputeTotal(subtotal, tax, shippingCost, discount decimal.Decimal) (decimal.Decimal, error) {
	for name, v := range map[string]decimal.Decimal{
		"subtotal":      subtotal,
		"tax":           tax,
		"shipping cost": shippingCost,
		"discount":      discount,
	} {
		if v.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidMoneyValue, name)
		}
	}
	total := Normalize(subtotal).
		Add(Normalize(tax)).
		Add(Normalize(shippingCost)).
		Sub(Normalize(discount))
	if total.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: discount %s exceeds order amount", ErrInvalidMoneyValue, discount.StringFixed(Scale))
	}
	return total, nil
}

// LineTotal multiplies a unit price by a quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int64) (decimal.Decimal, error) {
	if unitPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: unit price is negative", ErrInvalidMoneyValue)
	}
	if quantity < 0 {
		return decimal.Zero, fmt.Errorf("%w: quantity is negative", ErrInvalidMoneyValue)
	}
	return Normalize(unitPrice).Mul(decimal.NewFromInt(quantity)), nil
}

// Sum adds amounts; an empty call returns zero.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(Normalize(a))
	}
	return total
}

// DiscountPercent reports the whole-number percentage saved against comparePrice.
func DiscountPercent(price, comparePrice decimal.Decimal) int64 {
	if !comparePrice.GreaterThan(price) || !comparePrice.IsPositive() {
		return 0
	}
	pct := comparePrice.Sub(price).Div(comparePrice).Mul(decimal.NewFromInt(100))
	return pct.Round(0).IntPart()
}

// DefaultCurrency is applied when a caller leaves the currency blank.
const DefaultCurrency = "USD"

var supportedCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "CAD": {}, "AUD": {},
}

// SupportedCurrency reports whether code is an accepted ISO currency.
func SupportedCurrency(code string) bool {
	_, ok := supportedCurrencies[code]
	return ok
}
