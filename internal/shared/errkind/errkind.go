// Package errkind classifies engine errors so outer layers can map them without
// importing every bounded context.
package errkind

import "errors"

// Kind names a category of engine failure.
type Kind string

const (
	Unknown            Kind = "unknown"
	InsufficientStock  Kind = "insufficient_stock"
	InvalidQuantity    Kind = "invalid_quantity"
	IllegalTransition  Kind = "illegal_transition"
	RefundNotAllowed   Kind = "refund_not_allowed"
	InvalidMoneyValue  Kind = "invalid_money_value"
	IdGenerationFailed Kind = "id_generation_failed"
	DuplicateReview    Kind = "duplicate_review"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	InvalidInput       Kind = "invalid_input"
	Internal           Kind = "internal"
)

// Error is a sentinel carrying a Kind. Compare instances with errors.Is.
type Error struct {
	kind Kind
	msg  string
}

// New returns a sentinel error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind reports the category of the sentinel.
func (e *Error) Kind() Kind { return e.kind }

type kinded interface {
	Kind() Kind
}

// Of returns the first Kind found in err's chain, Internal for unclassified errors
// and Unknown for nil.
func Of(err error) Kind {
	if err == nil {
		return Unknown
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Internal
}

// ClientCorrectable reports whether the caller can fix the request and retry.
func ClientCorrectable(err error) bool {
	switch Of(err) {
	case InsufficientStock, InvalidQuantity, IllegalTransition, RefundNotAllowed,
		InvalidMoneyValue, DuplicateReview, NotFound, Conflict, InvalidInput:
		return true
	default:
		return false
	}
}

// Retryable reports whether repeating the same call may succeed without changes.
func Retryable(err error) bool {
	switch Of(err) {
	case Conflict, IdGenerationFailed, Internal:
		return true
	default:
		return false
	}
}

type kindedError struct {
	kind Kind
	err  error
}

func (e *kindedError) Error() string { return e.err.Error() }
func (e *kindedError) Unwrap() error { return e.err }
func (e *kindedError) Kind() Kind { return e.kind }

// WithKind attaches kind to err, for errors that crossed a process boundary
// and lost their sentinel identity.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindedError{kind: kind, err: err}
}
