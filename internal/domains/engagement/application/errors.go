package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/commerce-engine/internal/domains/engagement/domain"
	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

var (
	// ErrInvalidInput signals the request violated a post or comment invariant.
	ErrInvalidInput = errkind.New(errkind.InvalidInput, "invalid engagement input")
	// ErrParentMismatch signals a reply whose parent belongs to another post.
	ErrParentMismatch = errkind.New(errkind.InvalidInput, "parent comment belongs to a different post")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidTitle) ||
		errors.Is(err, domain.ErrContentTooShort) ||
		errors.Is(err, domain.ErrExcerptTooLong) ||
		errors.Is(err, domain.ErrInvalidAuthor) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, domain.ErrInvalidUser) ||
		errors.Is(err, domain.ErrInvalidPost) ||
		errors.Is(err, domain.ErrInvalidComment) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
