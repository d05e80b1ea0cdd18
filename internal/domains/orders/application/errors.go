package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errkind.New(errkind.InvalidInput, "invalid order input")
	// ErrCurrencyMismatch signals a cart line priced in a different currency than the order.
	ErrCurrencyMismatch = errkind.New(errkind.InvalidInput, "product currency does not match order currency")
	// ErrSideEffectsIncomplete signals the status change was stored but some follow-up work failed.
	ErrSideEffectsIncomplete = errkind.New(errkind.Internal, "order transition side effects incomplete")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrEmptyOrder) ||
		errors.Is(err, domain.ErrInvalidUser) ||
		errors.Is(err, domain.ErrInvalidCurrency) ||
		errors.Is(err, domain.ErrNotesTooLong) ||
		errors.Is(err, domain.ErrInvalidPaymentMethod) ||
		errors.Is(err, domain.ErrInvalidEstimatedDays) ||
		errors.Is(err, domain.ErrInvalidAddress) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, domain.ErrTrackingNumberTooLong) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
