package domain

import "github.com/shopspring/decimal"

// Rating is the denormalized review summary stored on a product.
type Rating struct {
	Average float64
	Count   int64
}

// ComputeRating returns the mean of ratings rounded half-up to one decimal
// place, and their count. No ratings yields a zero Rating.
func ComputeRating(ratings []int) Rating {
	if len(ratings) == 0 {
		return Rating{}
	}
	var sum int64
	for _, r := range ratings {
		sum += int64(r)
	}
	count := int64(len(ratings))
	mean := decimal.NewFromInt(sum).Div(decimal.NewFromInt(count)).Round(1)
	return Rating{Average: mean.InexactFloat64(), Count: count}
}
