package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/commerce-engine/internal/domains/reviews/domain"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

var (
	// ErrInvalidInput signals the request violated a review invariant.
	ErrInvalidInput = errkind.New(errkind.InvalidInput, "invalid review input")
	// ErrProductNotFound signals the reviewed product does not exist.
	ErrProductNotFound = errkind.New(errkind.NotFound, "reviewed product not found")
	// ErrRatingNotRefreshed signals the moderation change was stored but the product
	// rating was not recomputed. Repeating the call recomputes it.
	ErrRatingNotRefreshed = errkind.New(errkind.Internal, "product rating not recomputed")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidRating) ||
		errors.Is(err, domain.ErrInvalidProduct) ||
		errors.Is(err, domain.ErrInvalidUser) ||
		errors.Is(err, domain.ErrTitleTooLong) ||
		errors.Is(err, domain.ErrCommentTooLong) ||
		errors.Is(err, domain.ErrResponseTooLong) ||
		errors.Is(err, domain.ErrEmptyResponse) ||
		errors.Is(err, domain.ErrInvalidImageURL) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, domain.ErrInvalidResponder) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
