package ports

import (
	"context"
	"time"

	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

// ErrIdempotencyConflict indicates the key was already used for a different cart.
var ErrIdempotencyConflict = errkind.New(errkind.InvalidInput, "idempotency key was used with a different cart")

// IdempotencyRecord binds a client-supplied key to the cart fingerprint and the
// order ID reserved for it.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	OrderID     string
	CreatedAt   time.Time
}

// IdempotencyStore claims idempotency keys so repeated placements resolve to one order.
type IdempotencyStore interface {
	// Get returns the stored record for the key, or nil when unknown.
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	// Claim stores the record unless the key is already known, and returns the
	// record that owns the key. When the stored record carries a different
	// request hash it is returned together with ErrIdempotencyConflict.
	Claim(ctx context.Context, record IdempotencyRecord) (*IdempotencyRecord, error)
}
