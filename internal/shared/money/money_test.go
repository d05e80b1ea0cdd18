package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotal(t *testing.T) {
	total, err := ComputeTotal(MustParse("100.00"), MustParse("8.00"), MustParse("5.00"), MustParse("10.00"))
	require.NoError(t, err)
	assert.Equal(t, "103.00", total.StringFixed(Scale))
}

func TestComputeTotal_NoDriftOnRepeatedAdds(t *testing.T) {
	acc := decimal.Zero
	for i := 0; i < 1000; i++ {
		acc = Sum(acc, MustParse("0.10"))
	}
	assert.True(t, acc.Equal(MustParse("100.00")))
}

func TestComputeTotal_RejectsNegativeInputs(t *testing.T) {
	_, err := ComputeTotal(MustParse("10"), decimal.NewFromInt(-1), Zero, Zero)
	require.ErrorIs(t, err, ErrInvalidMoneyValue)
}

func TestComputeTotal_DiscountMayNotExceedAmount(t *testing.T) {
	_, err := ComputeTotal(MustParse("10"), MustParse("1"), MustParse("1"), MustParse("12.01"))
	require.ErrorIs(t, err, ErrInvalidMoneyValue)

	total, err := ComputeTotal(MustParse("10"), MustParse("1"), MustParse("1"), MustParse("12"))
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestLineTotal(t *testing.T) {
	total, err := LineTotal(MustParse("19.99"), 3)
	require.NoError(t, err)
	assert.Equal(t, "59.97", total.StringFixed(Scale))
}

func TestParse(t *testing.T) {
	_, err := Parse("abc")
	require.ErrorIs(t, err, ErrInvalidMoneyValue)
	_, err = Parse("-1")
	require.ErrorIs(t, err, ErrInvalidMoneyValue)

	v, err := Parse("4.005")
	require.NoError(t, err)
	assert.Equal(t, "4.01", v.StringFixed(Scale))
}

func TestDiscountPercent(t *testing.T) {
	cases := []struct {
		price, compare string
		want           int64
	}{
		{"75", "100", 25},
		{"66.66", "100", 33},
		{"66.50", "100", 34},
		{"100", "100", 0},
		{"120", "100", 0},
		{"0", "0", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DiscountPercent(MustParse(tc.price), MustParse(tc.compare)), "%s vs %s", tc.price, tc.compare)
	}
}

func TestSupportedCurrency(t *testing.T) {
	for _, code := range []string{"USD", "EUR", "GBP", "CAD", "AUD"} {
		assert.True(t, SupportedCurrency(code), code)
	}
	assert.False(t, SupportedCurrency("usd"))
	assert.False(t, SupportedCurrency("JPY"))
}
